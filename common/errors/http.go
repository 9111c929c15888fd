package errors

import "net/http"

func HTTPStatus(err error) int {
	switch CodeOf(err) {
	case CodeInvalidInput:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeAlreadyExists, CodeConflict:
		return http.StatusConflict
	case CodeServiceUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Label is the short "error" value of the JSON failure envelope.
func Label(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "Validation failed"
	case http.StatusUnauthorized:
		return "Authentication failed"
	case http.StatusForbidden:
		return "Forbidden"
	case http.StatusNotFound:
		return "Not found"
	case http.StatusConflict:
		return "Conflict"
	case http.StatusServiceUnavailable:
		return "Service unavailable"
	default:
		return "Internal server error"
	}
}

// PublicMessage hides internal failure text from callers.
func PublicMessage(err error) string {
	if HTTPStatus(err) >= http.StatusInternalServerError {
		return "An unexpected error occurred"
	}
	if appErr, ok := As(err); ok {
		return appErr.Message
	}
	return err.Error()
}
