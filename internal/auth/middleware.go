package auth

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/handoff-service/internal/domain"
	"github.com/spec-kit/handoff-service/internal/repository"
	apperrors "github.com/spec-kit/handoff-service/pkg/util"
)

const principalKey = "auth_principal"

// Principal represents the authenticated caller on the HTTP surface.
type Principal struct {
	Analyst *domain.Analyst
	Claims  *Claims
}

// Middleware validates bearer tokens and loads analyst principals.
type Middleware struct {
	tokens   *TokenManager
	analysts repository.AnalystRepository
}

// NewMiddleware constructs middleware.
func NewMiddleware(tokens *TokenManager, analysts repository.AnalystRepository) *Middleware {
	return &Middleware{tokens: tokens, analysts: analysts}
}

// Handle enforces authentication for protected routes. Handoff tokens are not
// valid here; the REST surface requires a full analyst account.
func (m *Middleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthorized("invalid authorization header")
	}

	claims, err := m.tokens.ParseToken(parts[1])
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}
	if claims.Kind != TokenKindAnalyst {
		return apperrors.NewUnauthorized("analyst token required")
	}

	analyst, err := m.analysts.GetByID(c.Context(), claims.Subject)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewUnauthorized("analyst not found")
		}
		return apperrors.MapError(err)
	}
	if !analyst.Active {
		return apperrors.NewUnauthorized("analyst inactive")
	}

	c.Locals(principalKey, &Principal{Analyst: analyst, Claims: claims})
	return c.Next()
}

// PrincipalFromContext retrieves the authenticated analyst.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}

// RequireRole ensures the principal holds one of the allowed roles.
func RequireRole(allowed ...domain.AnalystRole) fiber.Handler {
	allowedSet := make(map[domain.AnalystRole]struct{}, len(allowed))
	for _, role := range allowed {
		allowedSet[role] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok || principal.Analyst == nil {
			return apperrors.NewUnauthorized("authentication required")
		}
		if len(allowedSet) == 0 {
			return c.Next()
		}
		if _, exists := allowedSet[principal.Analyst.Role]; !exists {
			return apperrors.NewForbidden("insufficient role")
		}
		return c.Next()
	}
}
