package lemonsqueezy

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidConfig   = errors.New("lemonsqueezy: invalid configuration")
	ErrInvalidParams   = errors.New("lemonsqueezy: invalid request parameters")
	ErrRequestFailed   = errors.New("lemonsqueezy: request failed")
	ErrInvalidResponse = errors.New("lemonsqueezy: invalid response")
)

// APIError is returned for responses with status 400 or above.
type APIError struct {
	StatusCode int
	Detail     string
	// Pointer is the JSON pointer of the offending request field, if reported.
	Pointer string
}

func (e *APIError) Error() string {
	if e.Pointer != "" {
		return fmt.Sprintf("%s (%s)", e.Detail, e.Pointer)
	}
	return e.Detail
}

func (e *APIError) Unwrap() error { return ErrRequestFailed }

type errorBody struct {
	Errors []struct {
		Detail string `json:"detail"`
		Source struct {
			Pointer string `json:"pointer"`
		} `json:"source"`
	} `json:"errors"`
	Error string `json:"error"`
}

// newAPIError picks the first structured error detail, then the top-level
// error string, then a generic status message.
func newAPIError(status int, body errorBody) *APIError {
	apiErr := &APIError{StatusCode: status}
	if len(body.Errors) > 0 {
		apiErr.Detail = body.Errors[0].Detail
		apiErr.Pointer = body.Errors[0].Source.Pointer
	}
	if apiErr.Detail == "" {
		apiErr.Detail = body.Error
	}
	if apiErr.Detail == "" {
		apiErr.Detail = fmt.Sprintf("Lemon request failed with status %d", status)
	}
	return apiErr
}
