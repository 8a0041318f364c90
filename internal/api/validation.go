package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"notely/internal/apperr"
)

// decodeJSON reads exactly one JSON object from body into dst. Field-level
// validation is left to the domain services.
func decodeJSON(body io.Reader, dst any) error {
	decoder := json.NewDecoder(body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return apperr.Wrap(apperr.KindValidation, "request body too large", err)
		}
		return apperr.Wrap(apperr.KindValidation, "invalid JSON body", err)
	}

	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return apperr.New(apperr.KindValidation, "invalid JSON body")
	}

	return nil
}
