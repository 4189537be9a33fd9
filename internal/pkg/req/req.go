/*
Package req provides helpers for parsing HTTP request bodies.

JSON bodies are decoded strictly (no unknown fields, no trailing data) and then validated with
the struct's `validate` tags; multipart bodies are size-limited before parsing.
*/
package req

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"chatwave/internal/pkg/errs"
)

const (
	// MaxFormMemory is the memory ParseMultipartForm may use before spilling to temp files.
	MaxFormMemory int64 = 8 << 20 // 8 MB

	// MaxRequestFileSize caps the whole multipart body, enforced via http.MaxBytesReader.
	MaxRequestFileSize int64 = 6 << 20 // 6 MB
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate runs the struct's `validate` tags and maps failures to ErrInvalidParams.
func Validate(dst any) *errs.CustomError {
	if err := validate.Struct(dst); err != nil {
		var invalid *validator.InvalidValidationError
		if errors.As(err, &invalid) {
			return errs.Internal(err)
		}
		return errs.NewError(errs.ErrInvalidParams)
	}
	return nil
}

// BindJSON decodes the request body into dst and validates it.
func BindJSON(r *http.Request, dst any) *errs.CustomError {
	contentType := r.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "application/json") {
		return errs.NewError(errs.ErrUnsupportedMediaType)
	}

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		return errs.NewError(errs.ErrInvalidJSONFormat)
	}

	if decoder.More() {
		return errs.NewError(errs.ErrExtraContentInBody)
	}

	return Validate(dst)
}

// SetupMultipart limits and parses a multipart form body.
func SetupMultipart(w http.ResponseWriter, r *http.Request) *errs.CustomError {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestFileSize)

	err := r.ParseMultipartForm(MaxFormMemory)

	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return errs.NewError(errs.ErrRequestEntityTooLarge)
		}

		return errs.NewError(errs.ErrFormParseFailed)
	}

	return nil
}
