package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/handoff-service/internal/domain"
	"github.com/spec-kit/handoff-service/internal/events"
	"github.com/spec-kit/handoff-service/internal/repository"
	apperrors "github.com/spec-kit/handoff-service/pkg/util"
)

// LifecycleService owns ticket state transitions. The at-most-one-claimant
// invariant is enforced by the store's conditional update; this service maps
// outcomes to domain errors and publishes events only after the store confirms
// a transition.
type LifecycleService struct {
	tickets        repository.TicketRepository
	dispatcher     events.Dispatcher
	logger         *zap.Logger
	unclaimedLimit int
}

// LifecycleDependencies bundles collaborators.
type LifecycleDependencies struct {
	TicketRepo     repository.TicketRepository
	Dispatcher     events.Dispatcher
	Logger         *zap.Logger
	UnclaimedLimit int
}

// NewLifecycleService creates the service.
func NewLifecycleService(deps LifecycleDependencies) *LifecycleService {
	return &LifecycleService{
		tickets:        deps.TicketRepo,
		dispatcher:     deps.Dispatcher,
		logger:         deps.Logger,
		unclaimedLimit: deps.UnclaimedLimit,
	}
}

// Get fetches a ticket.
func (s *LifecycleService) Get(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.NewPersistenceFailed(err)
	}
	return ticket, nil
}

// Claim attempts to take a ticket for the given identity. A repeat claim by
// the current holder succeeds idempotently; a claim on a ticket held by
// someone else fails with ALREADY_CLAIMED and the loser learns who holds it.
// Returns the ticket and whether this was a reclaim.
func (s *LifecycleService) Claim(ctx context.Context, ticketID string, identity domain.Identity) (*domain.Ticket, bool, error) {
	name := strings.TrimSpace(identity.Name)
	if name == "" {
		return nil, false, apperrors.NewInvalidIdentity("operator name required")
	}

	before, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, false, apperrors.NewPersistenceFailed(err)
	}
	if before.Status == domain.TicketStatusResolved {
		return nil, false, apperrors.NewConflict("ticket already resolved", map[string]any{"ticket_id": ticketID})
	}
	reclaim := before.ClaimedBy(identity.OperatorID, name)

	ticket, err := s.tickets.Claim(ctx, ticketID, identity.OperatorID, name)
	if err != nil {
		if errors.Is(err, repository.ErrClaimConflict) {
			claimant := ""
			if ticket != nil && ticket.ClaimantName != nil {
				claimant = *ticket.ClaimantName
			}
			return nil, false, apperrors.NewAlreadyClaimed(ticketID, claimant)
		}
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, false, apperrors.NewPersistenceFailed(err)
	}

	if !reclaim {
		s.publishEvent(ctx, events.Event{
			Type:     events.EventTicketClaimed,
			TicketID: ticket.ID,
			Actor:    actorFromIdentity(identity),
			Payload: events.TicketClaimedPayload{
				OperatorName: name,
				OperatorID:   identity.OperatorID,
				Reclaim:      false,
			},
		})
		s.logger.Info("ticket claimed",
			zap.String("ticket_id", ticket.ID),
			zap.String("operator", name))
	}
	return ticket, reclaim, nil
}

// Resolve closes a ticket. Any registered operator may resolve, not only the
// claimant; the resolver's name is recorded in the event stream.
func (s *LifecycleService) Resolve(ctx context.Context, ticketID string, identity domain.Identity, note string) (*domain.Ticket, error) {
	name := strings.TrimSpace(identity.Name)
	if name == "" {
		return nil, apperrors.NewInvalidIdentity("operator name required")
	}

	existing, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.NewPersistenceFailed(err)
	}
	if existing.Status == domain.TicketStatusResolved {
		return existing, nil
	}

	ticket, err := s.tickets.Resolve(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.NewPersistenceFailed(err)
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketResolved,
		TicketID: ticket.ID,
		Actor:    actorFromIdentity(identity),
		Payload: events.TicketResolvedPayload{
			OperatorName: name,
			Note:         strings.TrimSpace(note),
		},
	})
	s.logger.Info("ticket resolved",
		zap.String("ticket_id", ticket.ID),
		zap.String("operator", name))
	return ticket, nil
}

// Reopen puts a resolved ticket back in the unclaimed pool. The previous
// claimant is cleared so the ticket is claimable again; conversation history
// is retained.
func (s *LifecycleService) Reopen(ctx context.Context, ticketID string, identity domain.Identity) (*domain.Ticket, error) {
	name := strings.TrimSpace(identity.Name)
	if name == "" {
		return nil, apperrors.NewInvalidIdentity("operator name required")
	}

	existing, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.NewPersistenceFailed(err)
	}
	if existing.Status != domain.TicketStatusResolved {
		return nil, apperrors.NewConflict("only resolved tickets can be reopened",
			map[string]any{"ticket_id": ticketID, "status": string(existing.Status)})
	}

	ticket, err := s.tickets.Reopen(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.NewPersistenceFailed(err)
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketReopened,
		TicketID: ticket.ID,
		Actor:    actorFromIdentity(identity),
		Payload:  events.TicketReopenedPayload{OperatorName: name},
	})
	s.logger.Info("ticket reopened",
		zap.String("ticket_id", ticket.ID),
		zap.String("operator", name))
	return ticket, nil
}

// Transfer hands a claimed ticket to another operator without passing through
// the unclaimed pool.
func (s *LifecycleService) Transfer(ctx context.Context, ticketID string, from domain.Identity, toOperatorID *string, toName string) (*domain.Ticket, error) {
	toName = strings.TrimSpace(toName)
	if toName == "" {
		return nil, apperrors.NewInvalidIdentity("target operator name required")
	}

	existing, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.NewPersistenceFailed(err)
	}
	if existing.Status != domain.TicketStatusClaimed {
		return nil, apperrors.NewConflict("only claimed tickets can be transferred",
			map[string]any{"ticket_id": ticketID, "status": string(existing.Status)})
	}
	if !existing.ClaimedBy(from.OperatorID, from.Name) && !from.Role.Elevated() {
		return nil, apperrors.NewForbidden("only the claimant or a supervisor may transfer")
	}

	var fromName string
	if existing.ClaimantName != nil {
		fromName = *existing.ClaimantName
	}

	ticket, err := s.tickets.Transfer(ctx, ticketID, toOperatorID, toName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewConflict("ticket no longer claimed", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.NewPersistenceFailed(err)
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketTransferred,
		TicketID: ticket.ID,
		Actor:    actorFromIdentity(from),
		Payload: events.TicketTransferredPayload{
			FromName: fromName,
			ToName:   toName,
			ToID:     toOperatorID,
		},
	})
	return ticket, nil
}

// ListUnclaimed returns the open pool for the dashboard.
func (s *LifecycleService) ListUnclaimed(ctx context.Context) ([]domain.Ticket, error) {
	tickets, err := s.tickets.ListUnclaimed(ctx, s.unclaimedLimit)
	if err != nil {
		return nil, apperrors.NewPersistenceFailed(err)
	}
	return tickets, nil
}

// ListForOperator returns the tickets currently held by an operator.
func (s *LifecycleService) ListForOperator(ctx context.Context, operatorID string) ([]domain.Ticket, error) {
	tickets, err := s.tickets.ListByClaimant(ctx, operatorID)
	if err != nil {
		return nil, apperrors.NewPersistenceFailed(err)
	}
	return tickets, nil
}

// List returns all tickets, newest first.
func (s *LifecycleService) List(ctx context.Context, limit, offset int) ([]domain.Ticket, error) {
	tickets, err := s.tickets.List(ctx, limit, offset)
	if err != nil {
		return nil, apperrors.NewPersistenceFailed(err)
	}
	return tickets, nil
}

func (s *LifecycleService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func actorFromIdentity(identity domain.Identity) events.Actor {
	actor := events.Actor{Name: identity.Name}
	if identity.OperatorID != nil {
		actor.OperatorID = *identity.OperatorID
	}
	return actor
}
