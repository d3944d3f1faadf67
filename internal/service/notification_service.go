package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/handoff-service/internal/discord"
	"github.com/spec-kit/handoff-service/internal/events"
	"github.com/spec-kit/handoff-service/internal/whatsapp"
	"github.com/spec-kit/handoff-service/internal/ws"
)

// Requester-facing lifecycle notices sent over the inbound channel.
const (
	noticeClaimedFmt  = "O operador %s assumiu o seu atendimento."
	noticeResolvedFmt = "Seu atendimento foi finalizado por %s. Obrigado pelo contato!"
	noticeReopened    = "Seu chamado foi reaberto e voltou para a fila de atendimento."
)

// NotificationService fans lifecycle events out to the dashboard, the operator
// notification channel and the requester. Fan-out targets are independent: a
// failing webhook never blocks the dashboard broadcast.
type NotificationService struct {
	dispatcher events.Dispatcher
	hub        *ws.Hub
	registry   *ws.Registry
	lifecycle  *LifecycleService
	announcer  discord.Announcer
	sender     whatsapp.Sender
	portalBase string
	logger     *zap.Logger
}

// NotificationDependencies bundles collaborators.
type NotificationDependencies struct {
	Dispatcher events.Dispatcher
	Hub        *ws.Hub
	Registry   *ws.Registry
	Lifecycle  *LifecycleService
	Announcer  discord.Announcer
	Sender     whatsapp.Sender
	PortalBase string
	Logger     *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(deps NotificationDependencies) *NotificationService {
	return &NotificationService{
		dispatcher: deps.Dispatcher,
		hub:        deps.Hub,
		registry:   deps.Registry,
		lifecycle:  deps.Lifecycle,
		announcer:  deps.Announcer,
		sender:     deps.Sender,
		portalBase: deps.PortalBase,
		logger:     deps.Logger,
	}
}

// RegisterHandlers subscribes to all lifecycle events.
func (s *NotificationService) RegisterHandlers() {
	s.dispatcher.Subscribe(events.EventTicketCreated, s.onTicketCreated)
	s.dispatcher.Subscribe(events.EventTicketClaimed, s.onTicketClaimed)
	s.dispatcher.Subscribe(events.EventTicketResolved, s.onTicketResolved)
	s.dispatcher.Subscribe(events.EventTicketReopened, s.onTicketReopened)
	s.dispatcher.Subscribe(events.EventTicketTransferred, s.onTicketTransferred)
}

func (s *NotificationService) onTicketCreated(ctx context.Context, event events.Event) error {
	ticket, err := s.lifecycle.Get(ctx, event.TicketID)
	if err != nil {
		return err
	}

	s.hub.BroadcastAll(ws.ServerEnvelope{
		Event: ws.EventTicketCreated,
		Data:  ws.NewTicketView(ticket),
	})
	s.refreshAvailable(ctx)

	claimURL := fmt.Sprintf("%s/tickets/%s", s.portalBase, ticket.ID)
	if err := s.announcer.TicketCreated(ctx, ticket, claimURL); err != nil {
		s.logger.Warn("discord announce failed",
			zap.String("ticket_id", ticket.ID),
			zap.Error(err))
	}
	return nil
}

func (s *NotificationService) onTicketClaimed(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketClaimedPayload)
	if !ok {
		return nil
	}
	ticket, err := s.lifecycle.Get(ctx, event.TicketID)
	if err != nil {
		return err
	}

	data := ws.TicketLifecyclePayload{
		TicketID:     ticket.ID,
		Status:       string(ticket.Status),
		OperatorName: payload.OperatorName,
		Reclaim:      payload.Reclaim,
	}
	if payload.OperatorID != nil {
		data.OperatorID = *payload.OperatorID
	}
	s.hub.BroadcastAll(ws.ServerEnvelope{Event: ws.EventTicketClaimed, Data: data})
	s.refreshAvailable(ctx)

	if err := s.announcer.TicketClaimed(ctx, ticket, payload.OperatorName); err != nil {
		s.logger.Warn("discord announce failed",
			zap.String("ticket_id", ticket.ID),
			zap.Error(err))
	}
	if err := s.sender.SendText(ctx, ticket.ChannelID, fmt.Sprintf(noticeClaimedFmt, payload.OperatorName)); err != nil {
		s.logger.Warn("requester notice failed",
			zap.String("ticket_id", ticket.ID),
			zap.Error(err))
	}
	return nil
}

func (s *NotificationService) onTicketResolved(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketResolvedPayload)
	if !ok {
		return nil
	}
	ticket, err := s.lifecycle.Get(ctx, event.TicketID)
	if err != nil {
		return err
	}

	s.hub.BroadcastAll(ws.ServerEnvelope{
		Event: ws.EventTicketResolved,
		Data: ws.TicketLifecyclePayload{
			TicketID:     ticket.ID,
			Status:       string(ticket.Status),
			OperatorName: payload.OperatorName,
			Note:         payload.Note,
		},
	})

	if err := s.announcer.TicketResolved(ctx, ticket, payload.OperatorName); err != nil {
		s.logger.Warn("discord announce failed",
			zap.String("ticket_id", ticket.ID),
			zap.Error(err))
	}
	if err := s.sender.SendText(ctx, ticket.ChannelID, fmt.Sprintf(noticeResolvedFmt, payload.OperatorName)); err != nil {
		s.logger.Warn("requester notice failed",
			zap.String("ticket_id", ticket.ID),
			zap.Error(err))
	}
	return nil
}

func (s *NotificationService) onTicketReopened(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketReopenedPayload)
	if !ok {
		return nil
	}
	ticket, err := s.lifecycle.Get(ctx, event.TicketID)
	if err != nil {
		return err
	}

	s.hub.BroadcastAll(ws.ServerEnvelope{
		Event: ws.EventTicketReopened,
		Data: ws.TicketLifecyclePayload{
			TicketID:     ticket.ID,
			Status:       string(ticket.Status),
			OperatorName: payload.OperatorName,
		},
	})
	s.refreshAvailable(ctx)

	if err := s.announcer.TicketReopened(ctx, ticket, payload.OperatorName); err != nil {
		s.logger.Warn("discord announce failed",
			zap.String("ticket_id", ticket.ID),
			zap.Error(err))
	}
	if err := s.sender.SendText(ctx, ticket.ChannelID, noticeReopened); err != nil {
		s.logger.Warn("requester notice failed",
			zap.String("ticket_id", ticket.ID),
			zap.Error(err))
	}
	return nil
}

func (s *NotificationService) onTicketTransferred(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketTransferredPayload)
	if !ok {
		return nil
	}
	ticket, err := s.lifecycle.Get(ctx, event.TicketID)
	if err != nil {
		return err
	}

	data := ws.TicketLifecyclePayload{
		TicketID:     ticket.ID,
		Status:       string(ticket.Status),
		OperatorName: payload.ToName,
	}
	if payload.ToID != nil {
		data.OperatorID = *payload.ToID
	}
	env := ws.ServerEnvelope{Event: ws.EventTicketClaimed, Data: data}

	// The assignee gets a directed frame per session; the broadcast excludes
	// them so each session hears about the handover exactly once.
	var assignee []string
	if payload.ToID != nil {
		assignee = s.registry.FindByOperator(*payload.ToID)
	}
	s.hub.BroadcastAll(env, assignee...)
	for _, sessionID := range assignee {
		s.hub.SendTo(sessionID, env)
	}

	if err := s.sender.SendText(ctx, ticket.ChannelID, fmt.Sprintf(noticeClaimedFmt, payload.ToName)); err != nil {
		s.logger.Warn("requester notice failed",
			zap.String("ticket_id", ticket.ID),
			zap.Error(err))
	}
	return nil
}

// refreshAvailable pushes the current unclaimed pool to every session.
func (s *NotificationService) refreshAvailable(ctx context.Context) {
	tickets, err := s.lifecycle.ListUnclaimed(ctx)
	if err != nil {
		s.logger.Warn("unclaimed list refresh failed", zap.Error(err))
		return
	}
	views := make([]ws.TicketView, 0, len(tickets))
	for i := range tickets {
		views = append(views, ws.NewTicketView(&tickets[i]))
	}
	s.hub.BroadcastAll(ws.ServerEnvelope{
		Event: ws.EventAvailableTickets,
		Data:  ws.AvailableTicketsPayload{Tickets: views},
	})
}
