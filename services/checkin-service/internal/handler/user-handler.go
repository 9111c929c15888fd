package handler

import (
	"net/http"

	"github.com/Sakethtadimeti/checkin-app/common/api"
	"github.com/Sakethtadimeti/checkin-app/common/auth"
	"github.com/Sakethtadimeti/checkin-app/common/logger"
	checkinerrors "github.com/Sakethtadimeti/checkin-app/services/checkin-service/internal/errors"
	"github.com/Sakethtadimeti/checkin-app/services/checkin-service/internal/service"
)

type UserHandler struct {
	userService service.UserService
	logger      *logger.Logger
}

func NewUserHandler(userService service.UserService, logger *logger.Logger) *UserHandler {
	return &UserHandler{
		userService: userService,
		logger:      logger,
	}
}

func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.userService.ListUsers(r.Context())
	if err != nil {
		api.WriteError(w, h.logger, err)
		return
	}

	api.WriteSuccess(w, http.StatusOK, "Users fetched successfully", map[string]any{
		"users": users,
		"count": len(users),
	})
}

// ListTeamMembers returns id, name and email of the caller's members for assignment pickers.
func (h *UserHandler) ListTeamMembers(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFrom(r.Context())
	if !ok {
		api.WriteError(w, h.logger, checkinerrors.MissingIdentityError())
		return
	}

	members, err := h.userService.ListTeamMembers(r.Context(), identity)
	if err != nil {
		api.WriteError(w, h.logger, err)
		return
	}

	api.WriteSuccess(w, http.StatusOK, "Members fetched successfully", map[string]any{
		"managerId": identity.UserID,
		"count":     len(members),
		"members":   members,
	})
}
