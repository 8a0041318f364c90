package constants

const (
	// Transport-level error codes returned in the "error.code" field.
	ErrCodeInvalidRequest     = "INVALID_REQUEST"
	ErrCodeDuplicateEmail     = "DUPLICATE_EMAIL"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeUnauthenticated    = "UNAUTHENTICATED"
	ErrCodeInvalidToken       = "INVALID_TOKEN"
	ErrCodeTokenRevoked       = "TOKEN_REVOKED"
	ErrCodeAlreadyRevoked     = "ALREADY_REVOKED"
	ErrCodeInvalidOTP         = "INVALID_OR_EXPIRED_OTP"
	ErrCodePayloadTooLarge    = "PAYLOAD_TOO_LARGE"
	ErrCodeRateLimited        = "RATE_LIMITED"
	ErrCodeInternal           = "INTERNAL_ERROR"
)
