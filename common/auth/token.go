package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Sakethtadimeti/checkin-app/common/clock"
	"github.com/Sakethtadimeti/checkin-app/common/models"
)

type TokenType string

const (
	TokenAccess  TokenType = "access"
	TokenRefresh TokenType = "refresh"
)

var (
	ErrMissingHeader    = errors.New("authorization header is required")
	ErrMalformedHeader  = errors.New("authorization header must be 'Bearer <token>'")
	ErrInvalidSignature = errors.New("token signature is invalid")
	ErrTokenExpired     = errors.New("token has expired")
	ErrTokenNotYetValid = errors.New("token is not yet valid")
	ErrWrongTokenType   = errors.New("invalid token type")
	ErrInvalidClaims    = errors.New("invalid token payload")
	ErrMalformedToken   = errors.New("token is malformed")
)

// AccessClaims identify a user and carry the role used for authorization.
type AccessClaims struct {
	ID    string      `json:"id"`
	Email string      `json:"email"`
	Role  models.Role `json:"role"`
	Type  TokenType   `json:"type"`
	jwt.RegisteredClaims
}

// RefreshClaims only identify a user; the role is re-read on refresh.
type RefreshClaims struct {
	ID    string    `json:"id"`
	Email string    `json:"email"`
	Type  TokenType `json:"type"`
	jwt.RegisteredClaims
}

type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type TokenService struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	clock      clock.Clock
}

func NewTokenService(secret string, accessTTL, refreshTTL time.Duration, clk clock.Clock) *TokenService {
	if clk == nil {
		clk = clock.Real()
	}
	return &TokenService{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		clock:      clk,
	}
}

func (s *TokenService) IssueAccess(user *models.User) (string, error) {
	now := s.clock.Now()
	claims := AccessClaims{
		ID:               user.ID,
		Email:            user.Email,
		Role:             user.Role,
		Type:             TokenAccess,
		RegisteredClaims: s.registered(now, s.accessTTL),
	}
	return s.sign(claims)
}

func (s *TokenService) IssueRefresh(user *models.User) (string, error) {
	now := s.clock.Now()
	claims := RefreshClaims{
		ID:               user.ID,
		Email:            user.Email,
		Type:             TokenRefresh,
		RegisteredClaims: s.registered(now, s.refreshTTL),
	}
	return s.sign(claims)
}

func (s *TokenService) IssuePair(user *models.User) (*TokenPair, error) {
	access, err := s.IssueAccess(user)
	if err != nil {
		return nil, err
	}
	refresh, err := s.IssueRefresh(user)
	if err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (s *TokenService) VerifyAccess(token string) (*AccessClaims, error) {
	var claims AccessClaims
	if err := s.parse(token, &claims); err != nil {
		return nil, err
	}
	if claims.Type != TokenAccess {
		return nil, ErrWrongTokenType
	}
	if claims.ID == "" || claims.Email == "" || !claims.Role.Valid() {
		return nil, ErrInvalidClaims
	}
	return &claims, nil
}

func (s *TokenService) VerifyRefresh(token string) (*RefreshClaims, error) {
	var claims RefreshClaims
	if err := s.parse(token, &claims); err != nil {
		return nil, err
	}
	if claims.Type != TokenRefresh {
		return nil, ErrWrongTokenType
	}
	if claims.ID == "" || claims.Email == "" {
		return nil, ErrInvalidClaims
	}
	return &claims, nil
}

// VerifyBearer extracts the token from an Authorization header and verifies it as an access token.
func (s *TokenService) VerifyBearer(header string) (*AccessClaims, error) {
	token, err := BearerToken(header)
	if err != nil {
		return nil, err
	}
	return s.VerifyAccess(token)
}

func BearerToken(header string) (string, error) {
	if header == "" {
		return "", ErrMissingHeader
	}
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(token) == "" || strings.Contains(strings.TrimSpace(token), " ") {
		return "", ErrMalformedHeader
	}
	return strings.TrimSpace(token), nil
}

func (s *TokenService) registered(now time.Time, ttl time.Duration) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
}

func (s *TokenService) sign(claims jwt.Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

func (s *TokenService) parse(token string, claims jwt.Claims) error {
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.clock.Now),
		jwt.WithExpirationRequired(),
	)
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		return ErrTokenNotYetValid
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return ErrInvalidSignature
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ErrMalformedToken
	default:
		return fmt.Errorf("%w: %v", ErrInvalidClaims, err)
	}
}
