package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"notely/internal/apperr"
	"notely/internal/constants"
)

type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, MessageResponse{Message: message})
}

func badRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, constants.ErrCodeInvalidRequest, message)
}

func notFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, constants.ErrCodeNotFound, message)
}

func payloadTooLarge(w http.ResponseWriter, message string) {
	writeError(w, http.StatusRequestEntityTooLarge, constants.ErrCodePayloadTooLarge, message)
}

func internalError(w http.ResponseWriter) {
	writeError(w, http.StatusInternalServerError, constants.ErrCodeInternal, "An internal error occurred")
}

type errorMapping struct {
	status int
	code   string
}

var kindMappings = map[apperr.Kind]errorMapping{
	apperr.KindValidation:          {http.StatusBadRequest, constants.ErrCodeInvalidRequest},
	apperr.KindDuplicateEmail:      {http.StatusConflict, constants.ErrCodeDuplicateEmail},
	apperr.KindNotFound:            {http.StatusNotFound, constants.ErrCodeNotFound},
	apperr.KindInvalidCredentials:  {http.StatusUnauthorized, constants.ErrCodeInvalidCredentials},
	apperr.KindUnauthenticated:     {http.StatusUnauthorized, constants.ErrCodeUnauthenticated},
	apperr.KindInvalidToken:        {http.StatusUnauthorized, constants.ErrCodeInvalidToken},
	apperr.KindTokenRevoked:        {http.StatusUnauthorized, constants.ErrCodeTokenRevoked},
	apperr.KindAlreadyRevoked:      {http.StatusBadRequest, constants.ErrCodeAlreadyRevoked},
	apperr.KindInvalidOrExpiredOtp: {http.StatusBadRequest, constants.ErrCodeInvalidOTP},
}

// writeAppError maps a domain error onto the HTTP error envelope. Internal
// and untagged errors are logged and answered with a generic 500.
func writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		if mapping, ok := kindMappings[appErr.Kind]; ok {
			writeError(w, mapping.status, mapping.code, appErr.Message)
			return
		}
	}

	slog.Error("request failed",
		"method", r.Method,
		"path", r.URL.Path,
		"error", err,
	)
	internalError(w)
}
