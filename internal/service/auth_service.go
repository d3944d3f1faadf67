package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/handoff-service/internal/auth"
	"github.com/spec-kit/handoff-service/internal/domain"
	"github.com/spec-kit/handoff-service/internal/repository"
	apperrors "github.com/spec-kit/handoff-service/pkg/util"
)

// AuthService handles analyst login and handoff token minting.
type AuthService struct {
	analysts repository.AnalystRepository
	tickets  repository.TicketRepository
	tokens   *auth.TokenManager
	logger   *zap.Logger
}

// AuthDependencies bundles collaborators.
type AuthDependencies struct {
	AnalystRepo  repository.AnalystRepository
	TicketRepo   repository.TicketRepository
	TokenManager *auth.TokenManager
	Logger       *zap.Logger
}

// LoginResult carries the issued token and its owner.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	Analyst   *domain.Analyst
}

// NewAuthService creates the service.
func NewAuthService(deps AuthDependencies) *AuthService {
	return &AuthService{
		analysts: deps.AnalystRepo,
		tickets:  deps.TicketRepo,
		tokens:   deps.TokenManager,
		logger:   deps.Logger,
	}
}

// Login validates credentials and issues a dashboard token.
func (s *AuthService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, apperrors.NewInvalidInput("username and password required", nil)
	}

	analyst, err := s.analysts.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewUnauthorized("invalid credentials")
		}
		return nil, apperrors.NewPersistenceFailed(err)
	}
	if err := auth.ComparePassword(analyst.PasswordHash, password); err != nil {
		return nil, apperrors.NewUnauthorized("invalid credentials")
	}

	token, expiresAt, err := s.tokens.GenerateAnalystToken(analyst)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	s.logger.Info("analyst logged in", zap.String("username", analyst.Username))
	return &LoginResult{Token: token, ExpiresAt: expiresAt, Analyst: analyst}, nil
}

// MintHandoffToken issues a single-ticket token for an operator claiming from
// the notification channel. The ticket must exist and the name must be usable
// as a claimant identity.
func (s *AuthService) MintHandoffToken(ctx context.Context, ticketID, operatorName, discordID string) (string, time.Time, error) {
	operatorName = strings.TrimSpace(operatorName)
	if len(operatorName) < 2 {
		return "", time.Time{}, apperrors.NewInvalidIdentity("operator name must be at least 2 characters")
	}
	if _, err := s.tickets.GetByID(ctx, ticketID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", time.Time{}, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return "", time.Time{}, apperrors.NewPersistenceFailed(err)
	}

	token, expiresAt, err := s.tokens.GenerateHandoffToken(ticketID, operatorName, discordID)
	if err != nil {
		return "", time.Time{}, apperrors.NewInternalError(err)
	}
	return token, expiresAt, nil
}
