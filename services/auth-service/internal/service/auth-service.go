package service

import (
	"context"
	"errors"

	"github.com/Sakethtadimeti/checkin-app/common/auth"
	apperrors "github.com/Sakethtadimeti/checkin-app/common/errors"
	"github.com/Sakethtadimeti/checkin-app/common/logger"
	"github.com/Sakethtadimeti/checkin-app/common/models"
	autherrors "github.com/Sakethtadimeti/checkin-app/services/auth-service/internal/errors"
)

// UserStore is the part of the user directory the auth service reads.
type UserStore interface {
	Authenticate(ctx context.Context, email, password string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
}

type TokenIssuer interface {
	IssuePair(user *models.User) (*auth.TokenPair, error)
	VerifyRefresh(token string) (*auth.RefreshClaims, error)
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type SessionUser struct {
	ID    string      `json:"id"`
	Email string      `json:"email"`
	Role  models.Role `json:"role"`
}

type Session struct {
	AccessToken  string      `json:"accessToken"`
	RefreshToken string      `json:"refreshToken"`
	User         SessionUser `json:"user"`
}

type AuthService interface {
	Login(ctx context.Context, req LoginRequest) (*Session, error)
	Refresh(ctx context.Context, req RefreshRequest) (*auth.TokenPair, error)
}

type authService struct {
	users  UserStore
	tokens TokenIssuer
	logger *logger.Logger
}

func NewAuthService(users UserStore, tokens TokenIssuer, logger *logger.Logger) AuthService {
	return &authService{
		users:  users,
		tokens: tokens,
		logger: logger,
	}
}

func (s *authService) Login(ctx context.Context, req LoginRequest) (*Session, error) {
	user, err := s.users.Authenticate(ctx, req.Email, req.Password)
	if err != nil {
		if apperrors.CodeOf(err) == apperrors.CodeUnauthorized {
			s.logger.Warn("Login rejected", "email", req.Email)
		}
		return nil, err
	}

	pair, err := s.tokens.IssuePair(user)
	if err != nil {
		return nil, autherrors.TokenIssueError(err)
	}

	s.logger.Info("User logged in", "user_id", user.ID, "role", user.Role)
	return &Session{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		User: SessionUser{
			ID:    user.ID,
			Email: user.Email,
			Role:  user.Role,
		},
	}, nil
}

// Refresh issues a new pair for a valid refresh token. The role is read
// from the directory again so role changes apply on the next refresh.
func (s *authService) Refresh(ctx context.Context, req RefreshRequest) (*auth.TokenPair, error) {
	claims, err := s.tokens.VerifyRefresh(req.RefreshToken)
	if errors.Is(err, auth.ErrWrongTokenType) {
		return nil, autherrors.InvalidTokenTypeError(err)
	}
	if err != nil {
		return nil, autherrors.InvalidRefreshTokenError(err)
	}

	user, err := s.users.GetByID(ctx, claims.ID)
	if apperrors.IsNotFound(err) {
		return nil, autherrors.InvalidRefreshTokenError(err)
	}
	if err != nil {
		return nil, err
	}

	pair, err := s.tokens.IssuePair(user)
	if err != nil {
		return nil, autherrors.TokenIssueError(err)
	}

	s.logger.Debug("Tokens refreshed", "user_id", user.ID)
	return pair, nil
}
