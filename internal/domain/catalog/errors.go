package catalog

import (
	"errors"
	"fmt"
)

// Error kinds. Use errors.Is against these to classify a failure.
var (
	ErrIntentNotSupported  = errors.New("intent not supported")
	ErrComponentNotFound   = errors.New("component not found")
	ErrParameterValidation = errors.New("parameter validation failed")
	ErrComponentValidation = errors.New("component validation failed")
	ErrIntentValidation    = errors.New("intent validation failed")
	ErrOriginNotAllowed    = errors.New("origin not allowed")
	ErrRendererUnavailable = errors.New("renderer unavailable")
	ErrDataProvider        = errors.New("data provider failed")
	ErrConfiguration       = errors.New("configuration error")
)

// Code is the stable machine-readable identifier of an error kind.
type Code string

const (
	CodeIntentNotSupported  Code = "INTENT_NOT_SUPPORTED"
	CodeComponentNotFound   Code = "COMPONENT_NOT_FOUND"
	CodeParameterValidation Code = "PARAMETER_VALIDATION_FAILED"
	CodeComponentValidation Code = "COMPONENT_VALIDATION_FAILED"
	CodeIntentValidation    Code = "INTENT_VALIDATION_FAILED"
	CodeOriginNotAllowed    Code = "ORIGIN_NOT_ALLOWED"
	CodeRendererUnavailable Code = "RENDERER_UNAVAILABLE"
	CodeDataProvider        Code = "DATA_PROVIDER_FAILED"
	CodeConfiguration       Code = "CONFIGURATION_ERROR"
	CodeInternal            Code = "INTERNAL_ERROR"
)

var codes = map[error]Code{
	ErrIntentNotSupported:  CodeIntentNotSupported,
	ErrComponentNotFound:   CodeComponentNotFound,
	ErrParameterValidation: CodeParameterValidation,
	ErrComponentValidation: CodeComponentValidation,
	ErrIntentValidation:    CodeIntentValidation,
	ErrOriginNotAllowed:    CodeOriginNotAllowed,
	ErrRendererUnavailable: CodeRendererUnavailable,
	ErrDataProvider:        CodeDataProvider,
	ErrConfiguration:       CodeConfiguration,
}

// Error is a classified failure with optional structured details, such as the full
// list of schema violations for a parameter validation error.
type Error struct {
	Kind    error
	Message string
	Details any
	Err     error
}

// NewError builds a classified error. kind must be one of the Err* sentinels.
func NewError(kind error, details any, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Details: details}
}

// WrapError classifies cause under kind.
func WrapError(kind error, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: cause}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes both the kind sentinel and the underlying cause.
func (e *Error) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

// Code returns the machine-readable code for the error kind.
func (e *Error) Code() Code {
	if c, ok := codes[e.Kind]; ok {
		return c
	}
	return CodeInternal
}

// CodeOf classifies any error, falling back to CodeInternal.
func CodeOf(err error) Code {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Code()
	}
	for kind, code := range codes {
		if errors.Is(err, kind) {
			return code
		}
	}
	return CodeInternal
}

// DetailsOf returns the structured details attached to err, if any.
func DetailsOf(err error) any {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Details
	}
	return nil
}

// IsClientError reports whether the caller can fix the request and retry.
func IsClientError(err error) bool {
	switch CodeOf(err) {
	case CodeIntentNotSupported, CodeParameterValidation, CodeOriginNotAllowed:
		return true
	}
	return false
}
