package errors

import (
	"errors"
	"fmt"
)

type AppError struct {
	Code    ErrorCode
	Message string
	Err     error
	Details []FieldError
}

// FieldError is one entry of a validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

func NewValidation(details []FieldError) *AppError {
	return &AppError{
		Code:    CodeInvalidInput,
		Message: "Request validation failed",
		Details: details,
	}
}

// As extracts the outermost AppError from err.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// CodeOf returns the code of the outermost AppError, or CodeInternalServer.
func CodeOf(err error) ErrorCode {
	if appErr, ok := As(err); ok {
		return appErr.Code
	}
	return CodeInternalServer
}

func IsNotFound(err error) bool {
	return CodeOf(err) == CodeNotFound
}
