package service

import (
	"context"

	"github.com/Sakethtadimeti/checkin-app/common/auth"
	"github.com/Sakethtadimeti/checkin-app/common/logger"
	"github.com/Sakethtadimeti/checkin-app/common/models"
)

// UserDirectory is the read side of the user directory the handlers need.
type UserDirectory interface {
	ListUsers(ctx context.Context) ([]models.SafeUser, error)
	ListByManager(ctx context.Context, managerID string) ([]models.UserSummary, error)
}

type UserService interface {
	ListUsers(ctx context.Context) ([]models.SafeUser, error)
	ListTeamMembers(ctx context.Context, identity auth.Identity) ([]models.UserSummary, error)
}

type userService struct {
	directory UserDirectory
	logger    *logger.Logger
}

func NewUserService(directory UserDirectory, logger *logger.Logger) UserService {
	return &userService{
		directory: directory,
		logger:    logger,
	}
}

func (s *userService) ListUsers(ctx context.Context) ([]models.SafeUser, error) {
	users, err := s.directory.ListUsers(ctx)
	if err != nil {
		s.logger.Error("Failed to list users", "error", err)
		return nil, err
	}
	return users, nil
}

// ListTeamMembers returns the members reporting to the calling manager.
func (s *userService) ListTeamMembers(ctx context.Context, identity auth.Identity) ([]models.UserSummary, error) {
	members, err := s.directory.ListByManager(ctx, identity.UserID)
	if err != nil {
		s.logger.Error("Failed to list team members", "error", err, "manager_id", identity.UserID)
		return nil, err
	}
	return members, nil
}
