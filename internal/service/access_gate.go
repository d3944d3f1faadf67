package service

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/handoff-service/internal/auth"
	"github.com/spec-kit/handoff-service/internal/domain"
	"github.com/spec-kit/handoff-service/internal/repository"
	apperrors "github.com/spec-kit/handoff-service/pkg/util"
)

// AccessGate resolves realtime credentials to identities and decides room
// admission. Two credential kinds exist: analyst tokens carry a full account,
// handoff tokens carry only a display name scoped to one ticket.
type AccessGate struct {
	tokens   *auth.TokenManager
	analysts repository.AnalystRepository
}

// AccessGateDependencies bundles collaborators.
type AccessGateDependencies struct {
	TokenManager *auth.TokenManager
	AnalystRepo  repository.AnalystRepository
}

// NewAccessGate creates the gate.
func NewAccessGate(deps AccessGateDependencies) *AccessGate {
	return &AccessGate{tokens: deps.TokenManager, analysts: deps.AnalystRepo}
}

// Authenticate validates a token and produces the identity it represents.
func (g *AccessGate) Authenticate(ctx context.Context, token string) (domain.Identity, error) {
	claims, err := g.tokens.ParseToken(token)
	if err != nil {
		return domain.Identity{}, apperrors.NewUnauthorized("invalid token")
	}

	switch claims.Kind {
	case auth.TokenKindAnalyst:
		analyst, err := g.analysts.GetByID(ctx, claims.Subject)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return domain.Identity{}, apperrors.NewUnauthorized("analyst not found")
			}
			return domain.Identity{}, apperrors.MapError(err)
		}
		if !analyst.Active {
			return domain.Identity{}, apperrors.NewUnauthorized("analyst inactive")
		}
		id := analyst.ID
		identity := domain.Identity{
			OperatorID: &id,
			Name:       analyst.FullName,
			Role:       analyst.Role,
			DiscordID:  analyst.DiscordID,
		}
		return identity, nil

	case auth.TokenKindHandoff:
		if claims.TicketID == "" {
			return domain.Identity{}, apperrors.NewUnauthorized("handoff token missing ticket scope")
		}
		identity := domain.Identity{
			Name:     claims.Name,
			TicketID: claims.TicketID,
		}
		if claims.DiscordID != "" {
			discordID := claims.DiscordID
			identity.DiscordID = &discordID
		}
		return identity, nil

	default:
		return domain.Identity{}, apperrors.NewUnauthorized("unknown token kind")
	}
}

// AuthorizeRoom decides whether an identity may enter a ticket room. Admission
// rules: handoff identities only enter their scoped ticket; otherwise an
// unclaimed ticket is open to anyone, a claimed ticket admits its claimant and
// elevated roles.
func (g *AccessGate) AuthorizeRoom(identity domain.Identity, ticket *domain.Ticket) error {
	if identity.TicketID != "" && identity.TicketID != ticket.ID {
		return apperrors.NewForbidden("token not valid for this ticket")
	}
	if !ticket.Claimed() {
		return nil
	}
	if ticket.ClaimedBy(identity.OperatorID, identity.Name) {
		return nil
	}
	if identity.Role.Elevated() {
		return nil
	}
	return apperrors.NewForbidden("ticket claimed by another operator")
}
