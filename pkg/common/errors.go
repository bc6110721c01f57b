package common

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is an error carrying the HTTP status and client-facing message
type AppError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Kind    string `json:"kind,omitempty"`
	Err     error  `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError creates a new AppError
func NewAppError(code int, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewBadRequestError creates a 400 error
func NewBadRequestError(message string, err error) *AppError {
	return NewAppError(http.StatusBadRequest, message, err)
}

// NewNotFoundError creates a 404 error
func NewNotFoundError(message string, err error) *AppError {
	return NewAppError(http.StatusNotFound, message, err)
}

// NewUnprocessableEntityError creates a 422 error
func NewUnprocessableEntityError(message string, err error) *AppError {
	return NewAppError(http.StatusUnprocessableEntity, message, err)
}

// NewInternalServerError creates a 500 error
func NewInternalServerError(message string) *AppError {
	return NewAppError(http.StatusInternalServerError, message, nil)
}

// NewServiceUnavailableError creates a 503 error
func NewServiceUnavailableError(message string) *AppError {
	return NewAppError(http.StatusServiceUnavailable, message, nil)
}

// Error kinds surfaced to the dashboard
const (
	KindLoad       = "load_error"
	KindPrediction = "prediction_error"
	KindRender     = "render_error"
)

// LoadError reports a dataset or model that could not be read at startup.
// It is fatal to startup and never retried.
type LoadError struct {
	Op     string
	Source string
	Err    error
}

func (e *LoadError) Error() string {
	if e.Source != "" {
		return fmt.Sprintf("load %s from %s: %v", e.Op, e.Source, e.Err)
	}
	return fmt.Sprintf("load %s: %v", e.Op, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// NewLoadError wraps err as a LoadError
func NewLoadError(op, source string, err error) *LoadError {
	return &LoadError{Op: op, Source: source, Err: err}
}

// PredictionError reports a failed inference. It aborts one prediction attempt only.
type PredictionError struct {
	Op  string
	Err error
}

func (e *PredictionError) Error() string {
	return fmt.Sprintf("prediction %s: %v", e.Op, e.Err)
}

func (e *PredictionError) Unwrap() error { return e.Err }

// NewPredictionError wraps err as a PredictionError
func NewPredictionError(op string, err error) *PredictionError {
	return &PredictionError{Op: op, Err: err}
}

// RenderError reports a view that could not be produced. Other views are unaffected.
type RenderError struct {
	View string
	Err  error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render %s: %v", e.View, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

// NewRenderError wraps err as a RenderError for view
func NewRenderError(view string, err error) *RenderError {
	return &RenderError{View: view, Err: err}
}

// IsLoadError reports whether err wraps a LoadError
func IsLoadError(err error) bool {
	var target *LoadError
	return errors.As(err, &target)
}

// IsPredictionError reports whether err wraps a PredictionError
func IsPredictionError(err error) bool {
	var target *PredictionError
	return errors.As(err, &target)
}

// IsRenderError reports whether err wraps a RenderError
func IsRenderError(err error) bool {
	var target *RenderError
	return errors.As(err, &target)
}

// ToAppError maps domain error kinds onto HTTP errors
func ToAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	var loadErr *LoadError
	var predErr *PredictionError
	var renderErr *RenderError
	switch {
	case errors.As(err, &loadErr):
		return &AppError{Code: http.StatusServiceUnavailable, Message: loadErr.Error(), Kind: KindLoad, Err: err}
	case errors.As(err, &predErr):
		return &AppError{Code: http.StatusUnprocessableEntity, Message: predErr.Error(), Kind: KindPrediction, Err: err}
	case errors.As(err, &renderErr):
		return &AppError{Code: http.StatusInternalServerError, Message: renderErr.Error(), Kind: KindRender, Err: err}
	default:
		return &AppError{Code: http.StatusInternalServerError, Message: "internal server error", Err: err}
	}
}
