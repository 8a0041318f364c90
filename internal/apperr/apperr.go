// Package apperr defines the closed set of failures the domain services report.
// Transport layers map a Kind to a status code; nothing below them knows about HTTP.
package apperr

import "errors"

// Kind categorizes a domain failure.
type Kind int

const (
	// KindInternal covers storage, signing and collaborator failures.
	KindInternal Kind = iota
	KindValidation
	KindDuplicateEmail
	KindNotFound
	KindInvalidCredentials
	KindUnauthenticated
	KindInvalidToken
	KindTokenRevoked
	KindAlreadyRevoked
	KindInvalidOrExpiredOtp
)

var kindNames = map[Kind]string{
	KindInternal:            "internal",
	KindValidation:          "validation",
	KindDuplicateEmail:      "duplicate_email",
	KindNotFound:            "not_found",
	KindInvalidCredentials:  "invalid_credentials",
	KindUnauthenticated:     "unauthenticated",
	KindInvalidToken:        "invalid_token",
	KindTokenRevoked:        "token_revoked",
	KindAlreadyRevoked:      "already_revoked",
	KindInvalidOrExpiredOtp: "invalid_or_expired_otp",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Error is a tagged domain error. Message is safe to show to callers;
// Err carries the underlying cause for logs only.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.String() + ": " + e.Message
	}
	return e.Kind.String() + ": " + e.Message + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Internal wraps an unexpected failure. The message never reaches clients.
func Internal(message string, err error) *Error {
	return &Error{Kind: KindInternal, Message: message, Err: err}
}

// KindOf reports the Kind of err, or KindInternal when err is untagged.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// Is reports whether err is tagged with kind.
func Is(err error, kind Kind) bool {
	var appErr *Error
	return errors.As(err, &appErr) && appErr.Kind == kind
}
