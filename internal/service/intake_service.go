package service

import (
	"context"
	"errors"
	"fmt"
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

// IntakeStore persists in-flight dialogue sessions keyed by channel.
type IntakeStore interface {
	Get(ctx context.Context, channelID string) (*domain.IntakeSession, error)
	Put(ctx context.Context, session *domain.IntakeSession) error
	Delete(ctx context.Context, channelID string) error
}

// IntakeService runs the scripted dialogue that collects requester data over
// the inbound channel and registers a ticket at the end. Once a ticket exists
// for the channel, further inbound text is routed into its conversation.
type IntakeService struct {
	store        IntakeStore
	tickets      repository.TicketRepository
	conversation *ConversationService
	dispatcher   events.Dispatcher
	logger       *zap.Logger
}

// IntakeDependencies bundles collaborators.
type IntakeDependencies struct {
	Store        IntakeStore
	TicketRepo   repository.TicketRepository
	Conversation *ConversationService
	Dispatcher   events.Dispatcher
	Logger       *zap.Logger
}

// NewIntakeService creates the service.
func NewIntakeService(deps IntakeDependencies) *IntakeService {
	return &IntakeService{
		store:        deps.Store,
		tickets:      deps.TicketRepo,
		conversation: deps.Conversation,
		dispatcher:   deps.Dispatcher,
		logger:       deps.Logger,
	}
}

// HandleInbound processes one text from the requester channel and returns the
// scripted reply, or empty when no automatic reply applies.
func (s *IntakeService) HandleInbound(ctx context.Context, channelID, text string) (string, error) {
	channelID = strings.TrimSpace(channelID)
	if channelID == "" {
		return "", apperrors.NewInvalidInput("channel id required", nil)
	}
	text = strings.TrimSpace(text)

	active, err := s.tickets.GetActiveByChannel(ctx, channelID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return "", apperrors.NewPersistenceFailed(err)
	}
	if active != nil {
		if text == "" {
			return "", nil
		}
		if _, err := s.conversation.RouteInbound(ctx, active, text); err != nil {
			return "", err
		}
		if !active.Claimed() {
			return msgAwaitingOperator, nil
		}
		return "", nil
	}

	return s.advanceDialogue(ctx, channelID, text)
}

func (s *IntakeService) advanceDialogue(ctx context.Context, channelID, text string) (string, error) {
	session, err := s.store.Get(ctx, channelID)
	if err != nil {
		return "", apperrors.NewPersistenceFailed(err)
	}
	if session == nil {
		session = &domain.IntakeSession{
			ChannelID: channelID,
			Step:      domain.StepAwaitingCompany,
			StartedAt: time.Now(),
		}
		if err := s.store.Put(ctx, session); err != nil {
			return "", apperrors.NewPersistenceFailed(err)
		}
		return msgGreeting, nil
	}

	switch session.Step {
	case domain.StepAwaitingCompany:
		if len(text) < 2 {
			return msgInvalidCompany, nil
		}
		session.CompanyName = text
		session.Step = domain.StepAwaitingTaxID
		return s.save(ctx, session, msgAskTaxID)

	case domain.StepAwaitingTaxID:
		digits := digitsOnly(text)
		if !validTaxID(digits) {
			return msgInvalidTaxID, nil
		}
		session.TaxID = digits
		session.Step = domain.StepAwaitingContact
		return s.save(ctx, session, msgAskContact)

	case domain.StepAwaitingContact:
		if len(text) < 2 {
			return msgInvalidContact, nil
		}
		session.ContactName = text
		session.Step = domain.StepAwaitingCategory
		return s.save(ctx, session, msgAskCategory)

	case domain.StepAwaitingCategory:
		category, ok := parseCategory(text)
		if !ok {
			return msgInvalidCategory, nil
		}
		session.Category = category
		session.Step = domain.StepAwaitingDescription
		return s.save(ctx, session, msgAskDescription)

	case domain.StepAwaitingDescription:
		if text == "" {
			return msgInvalidDescription, nil
		}
		session.Description = text
		return s.finishDialogue(ctx, session)

	default:
		// Stale session in an unknown step; restart the dialogue.
		if err := s.store.Delete(ctx, channelID); err != nil {
			return "", apperrors.NewPersistenceFailed(err)
		}
		return s.advanceDialogue(ctx, channelID, text)
	}
}

func (s *IntakeService) finishDialogue(ctx context.Context, session *domain.IntakeSession) (string, error) {
	ticket := &domain.Ticket{
		ID:            generateTicketID(),
		ChannelID:     session.ChannelID,
		RequesterName: session.ContactName,
		CompanyName:   session.CompanyName,
		TaxID:         session.TaxID,
		Category:      session.Category,
		Description:   session.Description,
		Status:        domain.TicketStatusPending,
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return "", apperrors.NewPersistenceFailed(err)
	}
	if err := s.store.Delete(ctx, session.ChannelID); err != nil {
		s.logger.Warn("intake session cleanup failed",
			zap.String("channel_id", session.ChannelID),
			zap.Error(err))
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		Actor:    events.Actor{Name: ticket.RequesterName},
		Payload: events.TicketCreatedPayload{
			ChannelID:     ticket.ChannelID,
			RequesterName: ticket.RequesterName,
			CompanyName:   ticket.CompanyName,
			Category:      ticket.Category,
			Description:   ticket.Description,
		},
	})
	s.logger.Info("ticket registered",
		zap.String("ticket_id", ticket.ID),
		zap.String("channel_id", ticket.ChannelID),
		zap.String("category", string(ticket.Category)))

	return fmt.Sprintf(msgTicketCreatedFmt, ticket.ID, ticket.CompanyName, FormatTaxID(ticket.TaxID)), nil
}

func (s *IntakeService) save(ctx context.Context, session *domain.IntakeSession, reply string) (string, error) {
	if err := s.store.Put(ctx, session); err != nil {
		return "", apperrors.NewPersistenceFailed(err)
	}
	return reply, nil
}

func (s *IntakeService) publishEvent(ctx context.Context, event events.Event) {
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

var categoryMenu = map[string]domain.TicketCategory{
	"1": domain.CategoryPOSDown,
	"2": domain.CategoryPromotion,
	"3": domain.CategoryInventory,
	"4": domain.CategoryInvoice,
	"5": domain.CategoryOther,
}

func parseCategory(text string) (domain.TicketCategory, bool) {
	category, ok := categoryMenu[strings.TrimSpace(text)]
	return category, ok
}

func digitsOnly(text string) string {
	var b strings.Builder
	for _, r := range text {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func validTaxID(digits string) bool {
	return len(digits) == 14
}

// FormatTaxID renders a 14-digit tax id as NN.NNN.NNN/NNNN-NN. Inputs of any
// other length are returned unchanged.
func FormatTaxID(digits string) string {
	if len(digits) != 14 {
		return digits
	}
	return fmt.Sprintf("%s.%s.%s/%s-%s",
		digits[0:2], digits[2:5], digits[5:8], digits[8:12], digits[12:14])
}

func generateTicketID() string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:4]
	return fmt.Sprintf("SOL%d%s", time.Now().UnixMilli(), suffix)
}
