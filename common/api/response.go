// Package api holds the HTTP plumbing shared by the services: JSON
// envelopes, the middleware chain and the API Gateway adapter.
package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	apperrors "github.com/Sakethtadimeti/checkin-app/common/errors"
	"github.com/Sakethtadimeti/checkin-app/common/logger"
)

// MaxBodyBytes bounds request bodies read by ReadBody.
const MaxBodyBytes = 1 << 20

type SuccessEnvelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

type ErrorEnvelope struct {
	Success bool                   `json:"success"`
	Error   string                 `json:"error"`
	Message string                 `json:"message"`
	Details []apperrors.FieldError `json:"details,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

func WriteSuccess(w http.ResponseWriter, status int, message string, data any) {
	WriteJSON(w, status, SuccessEnvelope{Success: true, Message: message, Data: data})
}

// WriteError renders err as the failure envelope. Server-side failures are
// logged with their cause and reported with a generic message.
func WriteError(w http.ResponseWriter, log *logger.Logger, err error) {
	status := apperrors.HTTPStatus(err)
	if status >= http.StatusInternalServerError && log != nil {
		log.Error("Request failed", "error", err, "code", apperrors.CodeOf(err))
	}

	body := ErrorEnvelope{
		Success: false,
		Error:   apperrors.Label(status),
		Message: apperrors.PublicMessage(err),
	}
	if appErr, ok := apperrors.As(err); ok && status < http.StatusInternalServerError {
		body.Details = appErr.Details
	}
	WriteJSON(w, status, body)
}

// ReadBody reads at most MaxBodyBytes of the request body.
func ReadBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, apperrors.New(apperrors.CodeInvalidInput, "Request body is required")
	}
	defer r.Body.Close()

	body, err := io.ReadAll(io.LimitReader(r.Body, MaxBodyBytes+1))
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInvalidInput, "Request body could not be read")
	}
	if len(body) > MaxBodyBytes {
		return nil, apperrors.New(apperrors.CodeInvalidInput, fmt.Sprintf("Request body exceeds %d bytes", MaxBodyBytes))
	}
	if len(body) == 0 {
		return nil, apperrors.NewValidation([]apperrors.FieldError{{
			Field:   "body",
			Message: "Request body is required",
			Code:    "required",
		}})
	}
	return body, nil
}

// NotFound answers unknown routes with the JSON failure envelope.
func NotFound() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, nil, apperrors.New(apperrors.CodeNotFound, fmt.Sprintf("Route %s %s not found", r.Method, r.URL.Path)))
	})
}

func MethodNotAllowed() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusMethodNotAllowed, ErrorEnvelope{
			Success: false,
			Error:   "Method not allowed",
			Message: fmt.Sprintf("Method %s is not allowed on %s", r.Method, r.URL.Path),
		})
	})
}
