package handler

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/Sakethtadimeti/checkin-app/common/api"
	"github.com/Sakethtadimeti/checkin-app/common/auth"
	"github.com/Sakethtadimeti/checkin-app/common/logger"
	"github.com/Sakethtadimeti/checkin-app/common/validation"
	checkinerrors "github.com/Sakethtadimeti/checkin-app/services/checkin-service/internal/errors"
	"github.com/Sakethtadimeti/checkin-app/services/checkin-service/internal/service"
)

type CheckInHandler struct {
	checkInService service.CheckInService
	validator      *validation.Validator
	logger         *logger.Logger
}

func NewCheckInHandler(checkInService service.CheckInService, validator *validation.Validator, logger *logger.Logger) *CheckInHandler {
	return &CheckInHandler{
		checkInService: checkInService,
		validator:      validator,
		logger:         logger,
	}
}

func (h *CheckInHandler) CreateCheckIn(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFrom(r.Context())
	if !ok {
		api.WriteError(w, h.logger, checkinerrors.MissingIdentityError())
		return
	}

	body, err := api.ReadBody(r)
	if err != nil {
		api.WriteError(w, h.logger, err)
		return
	}

	var req service.CreateCheckInRequest
	if err := h.validator.Decode(r.Context(), validation.SchemaCreateCheckIn, body, &req); err != nil {
		api.WriteError(w, h.logger, err)
		return
	}

	checkIn, err := h.checkInService.CreateCheckIn(r.Context(), identity, req)
	if err != nil {
		api.WriteError(w, h.logger, err)
		return
	}

	api.WriteSuccess(w, http.StatusCreated, "Check-in created successfully", map[string]any{
		"checkIn": checkIn,
	})
}

func (h *CheckInHandler) GetManagerCheckIns(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFrom(r.Context())
	if !ok {
		api.WriteError(w, h.logger, checkinerrors.MissingIdentityError())
		return
	}

	checkIns, err := h.checkInService.GetManagerCheckIns(r.Context(), identity)
	if err != nil {
		api.WriteError(w, h.logger, err)
		return
	}

	api.WriteSuccess(w, http.StatusOK, "Check-ins fetched successfully", map[string]any{
		"checkIns": checkIns,
		"count":    len(checkIns),
	})
}

func (h *CheckInHandler) GetAssignedCheckIns(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFrom(r.Context())
	if !ok {
		api.WriteError(w, h.logger, checkinerrors.MissingIdentityError())
		return
	}

	assigned, err := h.checkInService.GetAssignedCheckIns(r.Context(), identity)
	if err != nil {
		api.WriteError(w, h.logger, err)
		return
	}

	api.WriteSuccess(w, http.StatusOK, "Assigned check-ins fetched successfully", map[string]any{
		"assignedCheckIns": assigned,
		"count":            len(assigned),
	})
}

func (h *CheckInHandler) GetCheckInDetails(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFrom(r.Context())
	if !ok {
		api.WriteError(w, h.logger, checkinerrors.MissingIdentityError())
		return
	}

	details, err := h.checkInService.GetCheckInDetails(r.Context(), identity, mux.Vars(r)["checkInId"])
	if err != nil {
		api.WriteError(w, h.logger, err)
		return
	}

	api.WriteSuccess(w, http.StatusOK, "Check-in details fetched successfully", details)
}

func (h *CheckInHandler) SubmitResponse(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFrom(r.Context())
	if !ok {
		api.WriteError(w, h.logger, checkinerrors.MissingIdentityError())
		return
	}
	checkInID := mux.Vars(r)["checkInId"]

	body, err := api.ReadBody(r)
	if err != nil {
		api.WriteError(w, h.logger, err)
		return
	}

	var req service.SubmitResponseRequest
	if err := h.validator.Decode(r.Context(), validation.SchemaSubmitResponse, body, &req); err != nil {
		api.WriteError(w, h.logger, err)
		return
	}

	response, err := h.checkInService.SubmitResponse(r.Context(), identity, checkInID, req)
	if err != nil {
		api.WriteError(w, h.logger, err)
		return
	}

	api.WriteSuccess(w, http.StatusCreated, "Response submitted successfully", map[string]any{
		"checkInId":   checkInID,
		"userId":      response.UserID,
		"submittedAt": response.SubmittedAt,
	})
}
