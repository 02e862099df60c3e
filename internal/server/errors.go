package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/jonathan/job-extractor/internal/backend"
	"github.com/jonathan/job-extractor/internal/extract"
	"github.com/jonathan/job-extractor/internal/fetch"
	"github.com/jonathan/job-extractor/internal/schemas"
)

// ErrValidation indicates request validation failure
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// ErrNotConfigured indicates an endpoint whose dependency was not set up
type ErrNotConfigured struct {
	Feature string
}

func (e *ErrNotConfigured) Error() string {
	return e.Feature + " not configured"
}

// ErrExtraction wraps a failed extraction inside a larger request
type ErrExtraction struct {
	Message string
}

func (e *ErrExtraction) Error() string {
	return "extraction failed: " + e.Message
}

// validationError converts validator output to *ErrValidation for the first
// failing field.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		msg := "failed " + fe.Tag()
		switch fe.Tag() {
		case "required", "required_without":
			msg = "is required"
		case "url":
			msg = "must be a URL"
		case "max":
			msg = "must have at most " + fe.Param() + " items"
		}
		return &ErrValidation{Field: fe.Field(), Message: msg}
	}
	return &ErrValidation{Field: "(body)", Message: err.Error()}
}

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	var (
		valErr    *ErrValidation
		notConf   *ErrNotConfigured
		exErr     *ErrExtraction
		apiErr    *backend.APIError
		schemaErr *schemas.ValidationError
		envErr    *extract.EnvironmentError
		fetchErr  *fetch.Error
		maxBytes  *http.MaxBytesError
	)
	switch {
	case errors.As(err, &valErr), errors.Is(err, backend.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge
	case errors.As(err, &notConf):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &apiErr):
		// Caller mistakes the backend reports are passed through
		if apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 && apiErr.StatusCode != http.StatusTooManyRequests {
			return apiErr.StatusCode
		}
		return http.StatusBadGateway
	case errors.As(err, &schemaErr):
		return http.StatusBadGateway
	case errors.Is(err, fetch.ErrRestrictedPage), errors.As(err, &exErr), errors.As(err, &envErr):
		return http.StatusUnprocessableEntity
	case errors.As(err, &fetchErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
