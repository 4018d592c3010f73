package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/storefront/pkg/binder"
	"github.com/dmitrymomot/storefront/pkg/logger"
)

// ErrorInfo is the client-facing classification of an error.
type ErrorInfo struct {
	StatusCode int
	Code       string
	Message    string
	Details    map[string][]string
}

func (i ErrorInfo) Detail() *ErrorDetail {
	return &ErrorDetail{Code: i.Code, Message: i.Message, Details: i.Details}
}

type fieldErrors interface {
	FieldErrors() map[string][]string
}

// Classify maps err to a status code and payload. Errors that are neither an
// HTTPError, a field validation error, nor a binder error become a generic 500.
func Classify(err error) ErrorInfo {
	var fe fieldErrors
	if errors.As(err, &fe) {
		return ErrorInfo{
			StatusCode: http.StatusBadRequest,
			Code:       "validation_error",
			Message:    "Request validation failed",
			Details:    fe.FieldErrors(),
		}
	}

	var httpErr HTTPError
	if errors.As(err, &httpErr) {
		msg := httpErr.Message
		if msg == "" {
			msg = http.StatusText(httpErr.Code)
		}
		return ErrorInfo{StatusCode: httpErr.Code, Code: httpErr.Key, Message: msg}
	}

	switch {
	case errors.Is(err, binder.ErrMissingContentType), errors.Is(err, binder.ErrUnsupportedMediaType):
		return ErrorInfo{StatusCode: http.StatusUnsupportedMediaType, Code: ErrUnsupportedMedia.Key, Message: err.Error()}
	case errors.Is(err, binder.ErrFailedToParseJSON), errors.Is(err, binder.ErrFailedToParsePath):
		return ErrorInfo{StatusCode: http.StatusBadRequest, Code: ErrBadRequest.Key, Message: err.Error()}
	}

	return ErrorInfo{
		StatusCode: http.StatusInternalServerError,
		Code:       ErrInternalServerError.Key,
		Message:    "An error occurred processing your request",
	}
}

// NewErrorHandler logs the error (warn for 4xx, error for 5xx) and renders
// the classified JSON error.
func NewErrorHandler(log *slog.Logger) ErrorHandler[Context] {
	if log == nil {
		log = slog.Default()
	}

	return func(ctx Context, err error) {
		info := Classify(err)
		r := ctx.Request()

		level := slog.LevelError
		if info.StatusCode < http.StatusInternalServerError {
			level = slog.LevelWarn
		}
		log.LogAttrs(r.Context(), level, "request error",
			logger.Error(err),
			slog.Int("status_code", info.StatusCode),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			logger.Component("http"),
		)

		if renderErr := JSONError(info.Detail(), WithJSONStatus(info.StatusCode)).Render(ctx.ResponseWriter(), r); renderErr != nil {
			log.ErrorContext(r.Context(), "failed to render error response", logger.Error(renderErr))
		}
	}
}
