package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/handoff-service/internal/domain"
	"github.com/spec-kit/handoff-service/internal/repository"
	"github.com/spec-kit/handoff-service/internal/whatsapp"
	"github.com/spec-kit/handoff-service/internal/worker"
	"github.com/spec-kit/handoff-service/internal/ws"
	apperrors "github.com/spec-kit/handoff-service/pkg/util"
)

const deliveryTimeout = 10 * time.Second

// ConversationService routes messages between connected operator sessions and
// the requester channel. Messages for one ticket are serialized through a
// per-room lock so room members observe a single order.
type ConversationService struct {
	hub       *ws.Hub
	registry  *ws.Registry
	gate      *AccessGate
	lifecycle *LifecycleService
	messages  repository.MessageRepository
	sender    whatsapp.Sender
	delivery  *worker.DeliveryWorker
	logger    *zap.Logger

	confirmDelay time.Duration

	roomMu    sync.Mutex
	roomLocks map[string]*sync.Mutex
}

// ConversationDependencies bundles collaborators.
type ConversationDependencies struct {
	Hub          *ws.Hub
	Registry     *ws.Registry
	Gate         *AccessGate
	Lifecycle    *LifecycleService
	MessageRepo  repository.MessageRepository
	Sender       whatsapp.Sender
	Delivery     *worker.DeliveryWorker
	Logger       *zap.Logger
	ConfirmDelay time.Duration
}

// NewConversationService creates the service.
func NewConversationService(deps ConversationDependencies) *ConversationService {
	return &ConversationService{
		hub:          deps.Hub,
		registry:     deps.Registry,
		gate:         deps.Gate,
		lifecycle:    deps.Lifecycle,
		messages:     deps.MessageRepo,
		sender:       deps.Sender,
		delivery:     deps.Delivery,
		logger:       deps.Logger,
		confirmDelay: deps.ConfirmDelay,
		roomLocks:    make(map[string]*sync.Mutex),
	}
}

// Authenticate binds a token identity to the session and announces presence.
func (s *ConversationService) Authenticate(ctx context.Context, sessionID, token string) (*domain.Session, error) {
	identity, err := s.gate.Authenticate(ctx, token)
	if err != nil {
		return nil, err
	}
	session, err := s.registry.Register(sessionID, identity)
	if err != nil {
		return nil, err
	}
	s.hub.BroadcastAll(ws.ServerEnvelope{
		Event: ws.EventOperatorConnected,
		Data: ws.PresencePayload{
			SessionID:    sessionID,
			OperatorName: session.Identity.Name,
		},
	}, sessionID)
	return session, nil
}

// Subscribe admits the session into a ticket room, auto-claiming an unclaimed
// pending ticket for the subscriber. On success the subscriber receives the
// full stored conversation and the room learns about the new member.
func (s *ConversationService) Subscribe(ctx context.Context, sessionID, ticketID string) error {
	identity := s.registry.Resolve(sessionID)

	ticket, err := s.lifecycle.Get(ctx, ticketID)
	if err != nil {
		return err
	}
	if err := s.gate.AuthorizeRoom(identity, ticket); err != nil {
		return err
	}

	if ticket.Status == domain.TicketStatusPending && !ticket.Claimed() {
		claimed, _, err := s.lifecycle.Claim(ctx, ticketID, identity)
		if err != nil {
			return err
		}
		ticket = claimed
	}

	if !s.hub.Join(ticketID, sessionID) {
		return apperrors.NewConflict("session not connected", map[string]any{"session_id": sessionID})
	}

	history, err := s.messages.ListByTicket(ctx, ticketID)
	if err != nil {
		s.hub.Leave(ticketID, sessionID)
		return apperrors.NewPersistenceFailed(err)
	}
	views := make([]ws.MessageView, 0, len(history))
	for i := range history {
		views = append(views, ws.NewMessageView(&history[i]))
	}
	s.hub.SendTo(sessionID, ws.ServerEnvelope{
		Event: ws.EventTicketHistory,
		Data: ws.TicketHistoryPayload{
			Ticket:   ws.NewTicketView(ticket),
			Messages: views,
		},
	})

	s.hub.BroadcastRoom(ticketID, ws.ServerEnvelope{
		Event: ws.EventMemberJoined,
		Data: ws.MemberPayload{
			TicketID:     ticketID,
			SessionID:    sessionID,
			OperatorName: identity.Name,
		},
	}, sessionID)
	return nil
}

// Unsubscribe removes the session from a room.
func (s *ConversationService) Unsubscribe(sessionID, ticketID string) {
	if !s.hub.InRoom(ticketID, sessionID) {
		return
	}
	identity := s.registry.Resolve(sessionID)
	s.hub.Leave(ticketID, sessionID)
	s.hub.BroadcastRoom(ticketID, ws.ServerEnvelope{
		Event: ws.EventMemberLeft,
		Data: ws.MemberPayload{
			TicketID:     ticketID,
			SessionID:    sessionID,
			OperatorName: identity.Name,
		},
	})
}

// Publish stores an outbound message, fans it out to the room, and forwards it
// to the requester channel. A gateway failure marks the stored message failed
// and notifies the sender with the original correlation id; room fan-out is
// not rolled back.
func (s *ConversationService) Publish(ctx context.Context, sessionID, ticketID, content, correlationID string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return apperrors.NewInvalidInput("message content required", map[string]any{"ticket_id": ticketID})
	}
	if !s.hub.InRoom(ticketID, sessionID) {
		return apperrors.NewForbidden("subscribe to the ticket before sending")
	}

	identity := s.registry.Resolve(sessionID)
	ticket, err := s.lifecycle.Get(ctx, ticketID)
	if err != nil {
		return err
	}

	lock := s.roomLock(ticketID)
	lock.Lock()
	defer lock.Unlock()

	author := identity.Name
	msg := &domain.Message{
		ID:        uuid.NewString(),
		TicketID:  ticketID,
		Content:   content,
		Direction: domain.DirectionOutgoing,
		Author:    &author,
		Status:    domain.MessageStatusSent,
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		// The rest of the room sees the failure too; the sender gets the
		// returned error through their own error frame.
		domainErr := apperrors.ToDomainError(apperrors.NewPersistenceFailed(err))
		s.hub.BroadcastRoom(ticketID, ws.ServerEnvelope{
			Event: ws.EventError,
			Data: ws.ErrorPayload{
				Code:          domainErr.Code,
				Message:       domainErr.Message,
				CorrelationID: correlationID,
				Details:       map[string]any{"ticket_id": ticketID},
			},
		}, sessionID)
		return domainErr
	}

	s.hub.BroadcastRoom(ticketID, ws.ServerEnvelope{
		Event: ws.EventNewMessage,
		Data:  ws.NewMessageView(msg),
	})

	if err := s.sender.SendText(ctx, ticket.ChannelID, content); err != nil {
		s.logger.Warn("outbound delivery failed",
			zap.String("ticket_id", ticketID),
			zap.String("message_id", msg.ID),
			zap.Error(err))
		s.markStatus(ctx, ticketID, msg.ID, domain.MessageStatusFailed)
		s.hub.SendTo(sessionID, ws.ServerEnvelope{
			Event: ws.EventError,
			Data: ws.ErrorPayload{
				Code:          "DELIVERY_FAILED",
				Message:       "message could not be delivered to the requester",
				CorrelationID: correlationID,
				Details:       map[string]any{"message_id": msg.ID},
			},
		})
		return nil
	}

	s.delivery.Schedule(msg.ID, s.confirmDelay, func() {
		confirmCtx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
		defer cancel()
		s.markStatus(confirmCtx, ticketID, msg.ID, domain.MessageStatusDelivered)
	})
	return nil
}

// RouteInbound stores a requester message on an active ticket and fans it out
// to the room. Used by the intake flow once a conversation is underway.
func (s *ConversationService) RouteInbound(ctx context.Context, ticket *domain.Ticket, content string) (*domain.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperrors.NewInvalidInput("message content required", map[string]any{"ticket_id": ticket.ID})
	}

	lock := s.roomLock(ticket.ID)
	lock.Lock()
	defer lock.Unlock()

	msg := &domain.Message{
		ID:        uuid.NewString(),
		TicketID:  ticket.ID,
		Content:   content,
		Direction: domain.DirectionIncoming,
		Status:    domain.MessageStatusSent,
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, apperrors.NewPersistenceFailed(err)
	}

	s.hub.BroadcastRoom(ticket.ID, ws.ServerEnvelope{
		Event: ws.EventNewMessage,
		Data:  ws.NewMessageView(msg),
	})
	return msg, nil
}

// History returns the stored conversation for a ticket, oldest first.
func (s *ConversationService) History(ctx context.Context, ticketID string) ([]domain.Message, error) {
	history, err := s.messages.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, apperrors.NewPersistenceFailed(err)
	}
	return history, nil
}

// MarkRead stamps one incoming message read and announces the transition to
// the room. Read receipts track the requester's messages only; outgoing ids
// are ignored.
func (s *ConversationService) MarkRead(ctx context.Context, sessionID, ticketID, messageID string) error {
	if !s.hub.InRoom(ticketID, sessionID) {
		return apperrors.NewForbidden("subscribe to the ticket first")
	}
	msg, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return apperrors.MapError(err)
	}
	if msg.TicketID != ticketID {
		return apperrors.NewNotFound("message", map[string]any{"message_id": messageID})
	}
	if msg.Direction != domain.DirectionIncoming {
		return nil
	}
	if _, err := s.messages.UpdateStatus(ctx, messageID, domain.MessageStatusRead); err != nil {
		return apperrors.MapError(err)
	}
	s.hub.BroadcastRoom(ticketID, ws.ServerEnvelope{
		Event: ws.EventMessageStatus,
		Data: ws.MessageStatusPayload{
			TicketID:  ticketID,
			MessageID: messageID,
			Status:    string(domain.MessageStatusRead),
		},
	})
	return nil
}

// MarkAllRead stamps every unread incoming message of a ticket.
func (s *ConversationService) MarkAllRead(ctx context.Context, sessionID, ticketID string) error {
	if !s.hub.InRoom(ticketID, sessionID) {
		return apperrors.NewForbidden("subscribe to the ticket first")
	}
	ids, err := s.messages.MarkAllRead(ctx, ticketID)
	if err != nil {
		return apperrors.NewPersistenceFailed(err)
	}
	for _, id := range ids {
		s.hub.BroadcastRoom(ticketID, ws.ServerEnvelope{
			Event: ws.EventMessageStatus,
			Data: ws.MessageStatusPayload{
				TicketID:  ticketID,
				MessageID: id,
				Status:    string(domain.MessageStatusRead),
			},
		})
	}
	return nil
}

// Disconnect tears down all state for a dropped connection: room departures
// are announced, the identity binding is removed and presence is updated.
// Claims are not released; the operator keeps their tickets across reconnects.
func (s *ConversationService) Disconnect(sessionID string) {
	identity := s.registry.Resolve(sessionID)
	rooms := s.hub.Detach(sessionID)
	for _, ticketID := range rooms {
		s.hub.BroadcastRoom(ticketID, ws.ServerEnvelope{
			Event: ws.EventMemberLeft,
			Data: ws.MemberPayload{
				TicketID:     ticketID,
				SessionID:    sessionID,
				OperatorName: identity.Name,
			},
		})
	}
	if _, registered := s.registry.Lookup(sessionID); registered {
		s.hub.BroadcastAll(ws.ServerEnvelope{
			Event: ws.EventOperatorDisconnected,
			Data: ws.PresencePayload{
				SessionID:    sessionID,
				OperatorName: identity.Name,
			},
		}, sessionID)
	}
	s.registry.Unregister(sessionID)
}

func (s *ConversationService) markStatus(ctx context.Context, ticketID, messageID string, status domain.MessageStatus) {
	if status == domain.MessageStatusFailed {
		// A late confirmation must not overwrite the failure.
		s.delivery.Cancel(messageID)
	}
	if _, err := s.messages.UpdateStatus(ctx, messageID, status); err != nil {
		s.logger.Warn("message status update failed",
			zap.String("message_id", messageID),
			zap.String("status", string(status)),
			zap.Error(err))
		return
	}
	s.hub.BroadcastRoom(ticketID, ws.ServerEnvelope{
		Event: ws.EventMessageStatus,
		Data: ws.MessageStatusPayload{
			TicketID:  ticketID,
			MessageID: messageID,
			Status:    string(status),
		},
	})
}

func (s *ConversationService) roomLock(ticketID string) *sync.Mutex {
	s.roomMu.Lock()
	defer s.roomMu.Unlock()
	lock, ok := s.roomLocks[ticketID]
	if !ok {
		lock = &sync.Mutex{}
		s.roomLocks[ticketID] = lock
	}
	return lock
}
