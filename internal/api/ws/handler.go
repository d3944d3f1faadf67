package ws

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/handoff-service/internal/observability"
	"github.com/spec-kit/handoff-service/internal/service"
	wsproto "github.com/spec-kit/handoff-service/internal/ws"
	apperrors "github.com/spec-kit/handoff-service/pkg/util"
)

const (
	opTimeout  = 15 * time.Second
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

// Handler owns the realtime connection loop: one goroutine reads client
// frames, one drains the hub outbox onto the socket.
type Handler struct {
	hub          *wsproto.Hub
	registry     *wsproto.Registry
	conversation *service.ConversationService
	lifecycle    *service.LifecycleService
	metrics      *observability.Metrics
	logger       *zap.Logger
}

// HandlerDependencies bundles collaborators.
type HandlerDependencies struct {
	Hub          *wsproto.Hub
	Registry     *wsproto.Registry
	Conversation *service.ConversationService
	Lifecycle    *service.LifecycleService
	Metrics      *observability.Metrics
	Logger       *zap.Logger
}

// NewHandler constructs the handler.
func NewHandler(deps HandlerDependencies) *Handler {
	return &Handler{
		hub:          deps.Hub,
		registry:     deps.Registry,
		conversation: deps.Conversation,
		lifecycle:    deps.Lifecycle,
		metrics:      deps.Metrics,
		logger:       deps.Logger,
	}
}

// UpgradeRequired gates the route to websocket upgrade requests.
func (h *Handler) UpgradeRequired(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// Serve runs one connection until the client disconnects.
func (h *Handler) Serve(conn *websocket.Conn) {
	sessionID := uuid.NewString()
	client := h.hub.Attach(sessionID)

	done := make(chan struct{})
	go h.writePump(conn, client, done)

	h.logger.Info("session connected", zap.String("session_id", sessionID))
	h.readLoop(conn, sessionID)

	h.conversation.Disconnect(sessionID)
	<-done
	_ = conn.Close()
	h.logger.Info("session closed", zap.String("session_id", sessionID))
}

func (h *Handler) writePump(conn *websocket.Conn, client *wsproto.Client, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case env, ok := <-client.Outbox():
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(env); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Handler) readLoop(conn *websocket.Conn, sessionID string) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var envelope wsproto.ClientEnvelope
		if err := json.Unmarshal(raw, &envelope); err != nil {
			h.sendError(sessionID, "", apperrors.NewInvalidInput("malformed frame", nil))
			continue
		}
		h.metrics.RecordWSEvent(envelope.Event)
		h.dispatch(sessionID, envelope)
	}
}

func (h *Handler) dispatch(sessionID string, envelope wsproto.ClientEnvelope) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	switch envelope.Event {
	case wsproto.EventAuthenticate:
		var payload wsproto.AuthenticatePayload
		if !h.decode(sessionID, envelope, &payload) {
			return
		}
		session, err := h.conversation.Authenticate(ctx, sessionID, payload.Token)
		if err != nil {
			h.sendError(sessionID, "", err)
			return
		}
		result := wsproto.AuthResultPayload{
			OK:        true,
			SessionID: sessionID,
			Name:      session.Identity.Name,
			Role:      string(session.Identity.Role),
			TicketID:  session.Identity.TicketID,
		}
		if session.Identity.OperatorID != nil {
			result.OperatorID = *session.Identity.OperatorID
		}
		h.hub.SendTo(sessionID, wsproto.ServerEnvelope{Event: wsproto.EventAuthResult, Data: result})

	case wsproto.EventSubscribeTicket:
		var payload wsproto.SubscribePayload
		if !h.decode(sessionID, envelope, &payload) {
			return
		}
		if err := h.conversation.Subscribe(ctx, sessionID, payload.TicketID); err != nil {
			h.sendError(sessionID, "", err)
		}

	case wsproto.EventUnsubscribeTicket:
		var payload wsproto.SubscribePayload
		if !h.decode(sessionID, envelope, &payload) {
			return
		}
		h.conversation.Unsubscribe(sessionID, payload.TicketID)

	case wsproto.EventSendMessage:
		var payload wsproto.SendMessagePayload
		if !h.decode(sessionID, envelope, &payload) {
			return
		}
		if err := h.conversation.Publish(ctx, sessionID, payload.TicketID, payload.Content, payload.CorrelationID); err != nil {
			h.sendError(sessionID, payload.CorrelationID, err)
		}

	case wsproto.EventMarkRead:
		var payload wsproto.MarkReadPayload
		if !h.decode(sessionID, envelope, &payload) {
			return
		}
		for _, messageID := range payload.MessageIDs {
			if err := h.conversation.MarkRead(ctx, sessionID, payload.TicketID, messageID); err != nil {
				h.sendError(sessionID, "", err)
				return
			}
		}

	case wsproto.EventMarkAllRead:
		var payload wsproto.MarkAllReadPayload
		if !h.decode(sessionID, envelope, &payload) {
			return
		}
		if err := h.conversation.MarkAllRead(ctx, sessionID, payload.TicketID); err != nil {
			h.sendError(sessionID, "", err)
		}

	case wsproto.EventClaimTicket:
		var payload wsproto.ClaimPayload
		if !h.decode(sessionID, envelope, &payload) {
			return
		}
		identity := h.registry.Resolve(sessionID)
		ticket, reclaim, err := h.lifecycle.Claim(ctx, payload.TicketID, identity)
		if err != nil {
			h.sendError(sessionID, "", err)
			return
		}
		// Reclaims publish no event, so confirm directly to the caller.
		if reclaim {
			data := wsproto.TicketLifecyclePayload{
				TicketID:     ticket.ID,
				Status:       string(ticket.Status),
				OperatorName: identity.Name,
				Reclaim:      true,
			}
			if identity.OperatorID != nil {
				data.OperatorID = *identity.OperatorID
			}
			h.hub.SendTo(sessionID, wsproto.ServerEnvelope{Event: wsproto.EventTicketClaimed, Data: data})
		}

	case wsproto.EventResolveTicket:
		var payload wsproto.ResolvePayload
		if !h.decode(sessionID, envelope, &payload) {
			return
		}
		identity := h.registry.Resolve(sessionID)
		if _, err := h.lifecycle.Resolve(ctx, payload.TicketID, identity, payload.Note); err != nil {
			h.sendError(sessionID, "", err)
		}

	case wsproto.EventReopenTicket:
		var payload wsproto.ClaimPayload
		if !h.decode(sessionID, envelope, &payload) {
			return
		}
		identity := h.registry.Resolve(sessionID)
		if _, err := h.lifecycle.Reopen(ctx, payload.TicketID, identity); err != nil {
			h.sendError(sessionID, "", err)
		}

	case wsproto.EventListTickets:
		tickets, err := h.lifecycle.ListUnclaimed(ctx)
		if err != nil {
			h.sendError(sessionID, "", err)
			return
		}
		views := make([]wsproto.TicketView, 0, len(tickets))
		for i := range tickets {
			views = append(views, wsproto.NewTicketView(&tickets[i]))
		}
		h.hub.SendTo(sessionID, wsproto.ServerEnvelope{
			Event: wsproto.EventAvailableTickets,
			Data:  wsproto.AvailableTicketsPayload{Tickets: views},
		})

	default:
		h.sendError(sessionID, "", apperrors.NewInvalidInput("unknown event",
			map[string]any{"event": envelope.Event}))
	}
}

func (h *Handler) decode(sessionID string, envelope wsproto.ClientEnvelope, target any) bool {
	if len(envelope.Data) == 0 {
		h.sendError(sessionID, "", apperrors.NewInvalidInput("missing event data",
			map[string]any{"event": envelope.Event}))
		return false
	}
	if err := json.Unmarshal(envelope.Data, target); err != nil {
		h.sendError(sessionID, "", apperrors.NewInvalidInput("malformed event data",
			map[string]any{"event": envelope.Event}))
		return false
	}
	return true
}

func (h *Handler) sendError(sessionID, correlationID string, err error) {
	domainErr := apperrors.ToDomainError(err)
	h.hub.SendTo(sessionID, wsproto.ServerEnvelope{
		Event: wsproto.EventError,
		Data: wsproto.ErrorPayload{
			Code:          domainErr.Code,
			Message:       domainErr.Message,
			CorrelationID: correlationID,
			Details:       domainErr.Details,
		},
	})
}
