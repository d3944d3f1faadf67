package service

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/handoff-service/internal/auth"
	"github.com/spec-kit/handoff-service/internal/domain"
	"github.com/spec-kit/handoff-service/internal/repository"
	apperrors "github.com/spec-kit/handoff-service/pkg/util"
)

const minPasswordLength = 8

// AnalystService manages operator accounts.
type AnalystService struct {
	analysts   repository.AnalystRepository
	bcryptCost int
	logger     *zap.Logger
}

// AnalystDependencies bundles collaborators.
type AnalystDependencies struct {
	AnalystRepo repository.AnalystRepository
	BcryptCost  int
	Logger      *zap.Logger
}

// AnalystCreateInput describes account creation payload.
type AnalystCreateInput struct {
	Username  string
	Password  string
	FullName  string
	Email     *string
	Role      domain.AnalystRole
	DiscordID *string
}

// AnalystUpdateInput describes mutable account fields. Nil means unchanged.
type AnalystUpdateInput struct {
	Password  *string
	FullName  *string
	Email     *string
	Role      *domain.AnalystRole
	DiscordID *string
	Active    *bool
}

// NewAnalystService creates the service.
func NewAnalystService(deps AnalystDependencies) *AnalystService {
	return &AnalystService{
		analysts:   deps.AnalystRepo,
		bcryptCost: deps.BcryptCost,
		logger:     deps.Logger,
	}
}

// Create registers an operator account.
func (s *AnalystService) Create(ctx context.Context, input AnalystCreateInput) (*domain.Analyst, error) {
	input.Username = strings.TrimSpace(input.Username)
	input.FullName = strings.TrimSpace(input.FullName)
	if len(input.Username) < 3 {
		return nil, apperrors.NewInvalidInput("username must be at least 3 characters", nil)
	}
	if len(input.Password) < minPasswordLength {
		return nil, apperrors.NewInvalidInput("password too short",
			map[string]any{"min_length": minPasswordLength})
	}
	if len(input.FullName) < 2 {
		return nil, apperrors.NewInvalidInput("full name must be at least 2 characters", nil)
	}
	role := input.Role
	if role == "" {
		role = domain.RoleAnalyst
	}
	if !validRole(role) {
		return nil, apperrors.NewInvalidInput("unknown role", map[string]any{"role": string(role)})
	}

	if _, err := s.analysts.GetByUsername(ctx, input.Username); err == nil {
		return nil, apperrors.NewConflict("username already in use",
			map[string]any{"username": input.Username})
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NewPersistenceFailed(err)
	}

	hash, err := auth.HashPassword(input.Password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	analyst := &domain.Analyst{
		Username:     input.Username,
		PasswordHash: hash,
		FullName:     input.FullName,
		Email:        input.Email,
		Role:         role,
		DiscordID:    input.DiscordID,
		Active:       true,
	}
	if err := s.analysts.Create(ctx, analyst); err != nil {
		return nil, apperrors.NewPersistenceFailed(err)
	}
	s.logger.Info("analyst created",
		zap.String("username", analyst.Username),
		zap.String("role", string(analyst.Role)))
	return analyst, nil
}

// Update mutates an account.
func (s *AnalystService) Update(ctx context.Context, id string, input AnalystUpdateInput) (*domain.Analyst, error) {
	analyst, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Password != nil {
		if len(*input.Password) < minPasswordLength {
			return nil, apperrors.NewInvalidInput("password too short",
				map[string]any{"min_length": minPasswordLength})
		}
		hash, err := auth.HashPassword(*input.Password, s.bcryptCost)
		if err != nil {
			return nil, apperrors.NewInternalError(err)
		}
		analyst.PasswordHash = hash
	}
	if input.FullName != nil {
		name := strings.TrimSpace(*input.FullName)
		if len(name) < 2 {
			return nil, apperrors.NewInvalidInput("full name must be at least 2 characters", nil)
		}
		analyst.FullName = name
	}
	if input.Email != nil {
		analyst.Email = input.Email
	}
	if input.Role != nil {
		if !validRole(*input.Role) {
			return nil, apperrors.NewInvalidInput("unknown role", map[string]any{"role": string(*input.Role)})
		}
		analyst.Role = *input.Role
	}
	if input.DiscordID != nil {
		analyst.DiscordID = input.DiscordID
	}
	if input.Active != nil {
		analyst.Active = *input.Active
	}

	if err := s.analysts.Update(ctx, analyst); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("analyst", map[string]any{"analyst_id": id})
		}
		return nil, apperrors.NewPersistenceFailed(err)
	}
	return analyst, nil
}

// Deactivate soft-deletes an account; existing claims are untouched.
func (s *AnalystService) Deactivate(ctx context.Context, id string) error {
	if err := s.analysts.Deactivate(ctx, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("analyst", map[string]any{"analyst_id": id})
		}
		return apperrors.NewPersistenceFailed(err)
	}
	return nil
}

// Get fetches one account.
func (s *AnalystService) Get(ctx context.Context, id string) (*domain.Analyst, error) {
	analyst, err := s.analysts.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("analyst", map[string]any{"analyst_id": id})
		}
		return nil, apperrors.NewPersistenceFailed(err)
	}
	return analyst, nil
}

// List returns accounts.
func (s *AnalystService) List(ctx context.Context, includeInactive bool) ([]domain.Analyst, error) {
	analysts, err := s.analysts.List(ctx, includeInactive)
	if err != nil {
		return nil, apperrors.NewPersistenceFailed(err)
	}
	return analysts, nil
}

func validRole(role domain.AnalystRole) bool {
	switch role {
	case domain.RoleAnalyst, domain.RoleSupervisor, domain.RoleAdmin:
		return true
	}
	return false
}
