package handler

import (
	"net/http"

	"github.com/Sakethtadimeti/checkin-app/common/api"
	"github.com/Sakethtadimeti/checkin-app/common/logger"
	"github.com/Sakethtadimeti/checkin-app/common/validation"
	"github.com/Sakethtadimeti/checkin-app/services/auth-service/internal/service"
)

type AuthHandler struct {
	authService service.AuthService
	validator   *validation.Validator
	logger      *logger.Logger
}

func NewAuthHandler(authService service.AuthService, validator *validation.Validator, logger *logger.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		validator:   validator,
		logger:      logger,
	}
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	body, err := api.ReadBody(r)
	if err != nil {
		api.WriteError(w, h.logger, err)
		return
	}

	var req service.LoginRequest
	if err := h.validator.Decode(r.Context(), validation.SchemaLogin, body, &req); err != nil {
		api.WriteError(w, h.logger, err)
		return
	}

	session, err := h.authService.Login(r.Context(), req)
	if err != nil {
		api.WriteError(w, h.logger, err)
		return
	}

	api.WriteSuccess(w, http.StatusOK, "Login successful", session)
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	body, err := api.ReadBody(r)
	if err != nil {
		api.WriteError(w, h.logger, err)
		return
	}

	var req service.RefreshRequest
	if err := h.validator.Decode(r.Context(), validation.SchemaRefresh, body, &req); err != nil {
		api.WriteError(w, h.logger, err)
		return
	}

	pair, err := h.authService.Refresh(r.Context(), req)
	if err != nil {
		api.WriteError(w, h.logger, err)
		return
	}

	api.WriteSuccess(w, http.StatusOK, "Tokens refreshed successfully", pair)
}

// Logout is stateless; clients drop their tokens.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	api.WriteSuccess(w, http.StatusOK, "Logout successful", nil)
}
