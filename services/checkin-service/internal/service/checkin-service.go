package service

import (
	"context"
	"strings"
	"time"

	"github.com/Sakethtadimeti/checkin-app/common/auth"
	apperrors "github.com/Sakethtadimeti/checkin-app/common/errors"
	"github.com/Sakethtadimeti/checkin-app/common/logger"
	"github.com/Sakethtadimeti/checkin-app/common/models"
	checkinerrors "github.com/Sakethtadimeti/checkin-app/services/checkin-service/internal/errors"
	"github.com/Sakethtadimeti/checkin-app/services/checkin-service/internal/repository"
)

// EventPublisher announces completed writes. Publishing is best effort.
type EventPublisher interface {
	PublishCheckInCreated(ctx context.Context, checkIn *models.CheckIn, assignedUserIDs []string) error
	PublishResponseSubmitted(ctx context.Context, checkInID, userID string, answerCount int) error
}

type CheckInService interface {
	CreateCheckIn(ctx context.Context, identity auth.Identity, req CreateCheckInRequest) (*models.CheckIn, error)
	GetManagerCheckIns(ctx context.Context, identity auth.Identity) ([]*models.CheckIn, error)
	GetAssignedCheckIns(ctx context.Context, identity auth.Identity) ([]*models.AssignedCheckIn, error)
	GetCheckInDetails(ctx context.Context, identity auth.Identity, checkInID string) (*models.CheckInDetails, error)
	SubmitResponse(ctx context.Context, identity auth.Identity, checkInID string, req SubmitResponseRequest) (*models.Response, error)
}

type checkInService struct {
	checkInRepo    repository.CheckInRepository
	eventPublisher EventPublisher
	logger         *logger.Logger
}

// NewCheckInService wires the service. eventPublisher may be nil when
// events are disabled.
func NewCheckInService(
	checkInRepo repository.CheckInRepository,
	eventPublisher EventPublisher,
	logger *logger.Logger,
) CheckInService {
	return &checkInService{
		checkInRepo:    checkInRepo,
		eventPublisher: eventPublisher,
		logger:         logger,
	}
}

func (s *checkInService) CreateCheckIn(ctx context.Context, identity auth.Identity, req CreateCheckInRequest) (*models.CheckIn, error) {
	dueDate, err := time.Parse(time.RFC3339, req.DueDate)
	if err != nil {
		return nil, checkinerrors.InvalidDueDateError(req.DueDate)
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, apperrors.NewValidation([]apperrors.FieldError{{
			Field:   "title",
			Message: "Title must not be blank",
			Code:    "invalid",
		}})
	}

	checkIn, err := s.checkInRepo.CreateCheckIn(ctx, models.CreateCheckInInput{
		Title:           title,
		Description:     strings.TrimSpace(req.Description),
		Questions:       req.Questions,
		DueDate:         dueDate,
		CreatedBy:       identity.UserID,
		AssignedUserIDs: req.AssignedUserIDs,
	})
	if err != nil {
		s.logger.Error("Failed to create check-in",
			"error", err,
			"created_by", identity.UserID,
			"assignees", len(req.AssignedUserIDs),
		)
		return nil, err
	}

	s.logger.Info("Check-in created",
		"check_in_id", checkIn.ID,
		"created_by", identity.UserID,
		"assignees", len(req.AssignedUserIDs),
	)

	if s.eventPublisher != nil {
		if err := s.eventPublisher.PublishCheckInCreated(ctx, checkIn, req.AssignedUserIDs); err != nil {
			s.logger.Warn("Failed to publish check-in created event", "error", err, "check_in_id", checkIn.ID)
		}
	}

	return checkIn, nil
}

func (s *checkInService) GetManagerCheckIns(ctx context.Context, identity auth.Identity) ([]*models.CheckIn, error) {
	checkIns, err := s.checkInRepo.GetCheckInsByManager(ctx, identity.UserID)
	if err != nil {
		s.logger.Error("Failed to list manager check-ins", "error", err, "manager_id", identity.UserID)
		return nil, err
	}
	return checkIns, nil
}

func (s *checkInService) GetAssignedCheckIns(ctx context.Context, identity auth.Identity) ([]*models.AssignedCheckIn, error) {
	assigned, err := s.checkInRepo.GetAssignedCheckInsForUser(ctx, identity.UserID)
	if err != nil {
		s.logger.Error("Failed to list assigned check-ins", "error", err, "user_id", identity.UserID)
		return nil, err
	}
	return assigned, nil
}

// GetCheckInDetails is visible to the creator and to assigned members only.
// Access is settled from the meta row and the caller's assignment key before
// the full view is assembled.
func (s *checkInService) GetCheckInDetails(ctx context.Context, identity auth.Identity, checkInID string) (*models.CheckInDetails, error) {
	checkIn, err := s.checkInRepo.GetCheckIn(ctx, checkInID)
	if err != nil {
		if !apperrors.IsNotFound(err) {
			s.logger.Error("Failed to get check-in", "error", err, "check_in_id", checkInID)
		}
		return nil, err
	}

	if checkIn.CreatedBy != identity.UserID {
		assigned, err := s.checkInRepo.IsAssigned(ctx, checkInID, identity.UserID)
		if err != nil {
			s.logger.Error("Failed to check assignment", "error", err, "check_in_id", checkInID, "user_id", identity.UserID)
			return nil, err
		}
		if !assigned {
			return nil, checkinerrors.CheckInAccessError()
		}
	}

	details, err := s.checkInRepo.GetCheckInDetails(ctx, checkInID)
	if err != nil {
		if !apperrors.IsNotFound(err) {
			s.logger.Error("Failed to get check-in details", "error", err, "check_in_id", checkInID)
		}
		return nil, err
	}
	return details, nil
}

func (s *checkInService) SubmitResponse(ctx context.Context, identity auth.Identity, checkInID string, req SubmitResponseRequest) (*models.Response, error) {
	response, err := s.checkInRepo.SubmitResponse(ctx, checkInID, identity.UserID, req.Answers)
	if err != nil {
		if apperrors.CodeOf(err) == apperrors.CodeForbidden {
			s.logger.Warn("Rejected response from unassigned user", "check_in_id", checkInID, "user_id", identity.UserID)
		} else {
			s.logger.Error("Failed to submit response", "error", err, "check_in_id", checkInID, "user_id", identity.UserID)
		}
		return nil, err
	}

	s.logger.Info("Response submitted",
		"check_in_id", checkInID,
		"user_id", identity.UserID,
		"answers", len(req.Answers),
	)

	if s.eventPublisher != nil {
		if err := s.eventPublisher.PublishResponseSubmitted(ctx, checkInID, identity.UserID, len(req.Answers)); err != nil {
			s.logger.Warn("Failed to publish response submitted event", "error", err, "check_in_id", checkInID)
		}
	}

	return response, nil
}
