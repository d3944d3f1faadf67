package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/handoff-service/internal/domain"
	"github.com/spec-kit/handoff-service/internal/events"
	"github.com/spec-kit/handoff-service/internal/observability"
	"github.com/spec-kit/handoff-service/internal/ws"
)

// fakeAnnouncer records notification-channel announcements.
type fakeAnnouncer struct {
	mu      sync.Mutex
	created []string
	claimed []string
	urls    []string
}

func (a *fakeAnnouncer) TicketCreated(_ context.Context, ticket *domain.Ticket, claimURL string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.created = append(a.created, ticket.ID)
	a.urls = append(a.urls, claimURL)
	return nil
}

func (a *fakeAnnouncer) TicketClaimed(_ context.Context, ticket *domain.Ticket, operatorName string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.claimed = append(a.claimed, ticket.ID+":"+operatorName)
	return nil
}

func (a *fakeAnnouncer) TicketResolved(context.Context, *domain.Ticket, string) error { return nil }
func (a *fakeAnnouncer) TicketReopened(context.Context, *domain.Ticket, string) error { return nil }

type notifyHarness struct {
	hub        *ws.Hub
	registry   *ws.Registry
	tickets    *fakeTicketRepo
	dispatcher events.Dispatcher
	lifecycle  *LifecycleService
	announcer  *fakeAnnouncer
	sender     *fakeSender
}

func newNotifyHarness(t *testing.T) *notifyHarness {
	t.Helper()
	logger := zap.NewNop()
	hub := ws.NewHub(logger, observability.NewMetrics())
	registry := ws.NewRegistry()
	tickets := newFakeTicketRepo()
	dispatcher := events.NewInMemoryDispatcher()
	announcer := &fakeAnnouncer{}
	sender := newFakeSender()

	lifecycle := NewLifecycleService(LifecycleDependencies{
		TicketRepo:     tickets,
		Dispatcher:     dispatcher,
		Logger:         logger,
		UnclaimedLimit: 50,
	})
	notifications := NewNotificationService(NotificationDependencies{
		Dispatcher: dispatcher,
		Hub:        hub,
		Registry:   registry,
		Lifecycle:  lifecycle,
		Announcer:  announcer,
		Sender:     sender,
		PortalBase: "https://portal.example.com",
		Logger:     logger,
	})
	notifications.RegisterHandlers()

	return &notifyHarness{
		hub:        hub,
		registry:   registry,
		tickets:    tickets,
		dispatcher: dispatcher,
		lifecycle:  lifecycle,
		announcer:  announcer,
		sender:     sender,
	}
}

func TestTicketCreatedFansOutEverywhere(t *testing.T) {
	h := newNotifyHarness(t)
	h.tickets.put(pendingTicket("SOL1"))
	dashboard := h.hub.Attach("s1")

	// Creation events come from intake; emit one directly.
	err := h.dispatcher.Publish(context.Background(), events.Event{
		Type:     events.EventTicketCreated,
		TicketID: "SOL1",
	})
	require.NoError(t, err)

	names := frameEvents(drain(dashboard))
	assert.Contains(t, names, ws.EventTicketCreated)
	assert.Contains(t, names, ws.EventAvailableTickets)

	require.Len(t, h.announcer.created, 1)
	assert.Equal(t, "SOL1", h.announcer.created[0])
	assert.Equal(t, "https://portal.example.com/tickets/SOL1", h.announcer.urls[0])
}

func TestTicketClaimedNotifiesRequesterAndDashboard(t *testing.T) {
	h := newNotifyHarness(t)
	h.tickets.put(pendingTicket("SOL1"))
	dashboard := h.hub.Attach("s1")

	_, _, err := h.lifecycle.Claim(context.Background(), "SOL1", analystIdentity("op-1", "Alice"))
	require.NoError(t, err)

	names := frameEvents(drain(dashboard))
	assert.Contains(t, names, ws.EventTicketClaimed)
	assert.Contains(t, names, ws.EventAvailableTickets)

	require.Len(t, h.announcer.claimed, 1)
	assert.Equal(t, "SOL1:Alice", h.announcer.claimed[0])

	// Requester hears who picked up the conversation.
	require.Equal(t, 1, h.sender.sentCount())
}

func TestTicketResolvedNotifiesRequester(t *testing.T) {
	h := newNotifyHarness(t)
	h.tickets.put(pendingTicket("SOL1"))
	dashboard := h.hub.Attach("s1")

	_, _, err := h.lifecycle.Claim(context.Background(), "SOL1", analystIdentity("op-1", "Alice"))
	require.NoError(t, err)
	_, err = h.lifecycle.Resolve(context.Background(), "SOL1", analystIdentity("op-1", "Alice"), "done")
	require.NoError(t, err)

	names := frameEvents(drain(dashboard))
	assert.Contains(t, names, ws.EventTicketResolved)
	assert.Equal(t, 2, h.sender.sentCount())
}

func TestTransferSendsDirectedFrameToAssignee(t *testing.T) {
	h := newNotifyHarness(t)
	h.tickets.put(pendingTicket("SOL1"))

	bobID := "op-2"
	bob := h.hub.Attach("s-bob")
	_, err := h.registry.Register("s-bob", domain.Identity{OperatorID: &bobID, Name: "Bob"})
	require.NoError(t, err)
	bystander := h.hub.Attach("s-other")

	_, _, err = h.lifecycle.Claim(context.Background(), "SOL1", analystIdentity("op-1", "Alice"))
	require.NoError(t, err)
	drain(bob)
	drain(bystander)

	_, err = h.lifecycle.Transfer(context.Background(), "SOL1", analystIdentity("op-1", "Alice"), &bobID, "Bob")
	require.NoError(t, err)

	// Assignee and bystander each hear the handover exactly once.
	bobFrames := 0
	for _, frame := range drain(bob) {
		if frame.Event != ws.EventTicketClaimed {
			continue
		}
		payload, ok := frame.Data.(ws.TicketLifecyclePayload)
		require.True(t, ok)
		assert.Equal(t, "Bob", payload.OperatorName)
		assert.Equal(t, "op-2", payload.OperatorID)
		bobFrames++
	}
	assert.Equal(t, 1, bobFrames)

	bystanderFrames := 0
	for _, frame := range drain(bystander) {
		if frame.Event == ws.EventTicketClaimed {
			bystanderFrames++
		}
	}
	assert.Equal(t, 1, bystanderFrames)
}

func TestTicketReopenedRefreshesQueue(t *testing.T) {
	h := newNotifyHarness(t)
	h.tickets.put(pendingTicket("SOL1"))

	_, _, err := h.lifecycle.Claim(context.Background(), "SOL1", analystIdentity("op-1", "Alice"))
	require.NoError(t, err)
	_, err = h.lifecycle.Resolve(context.Background(), "SOL1", analystIdentity("op-1", "Alice"), "")
	require.NoError(t, err)

	dashboard := h.hub.Attach("s1")
	_, err = h.lifecycle.Reopen(context.Background(), "SOL1", analystIdentity("op-2", "Bob"))
	require.NoError(t, err)

	var sawQueue bool
	for _, frame := range drain(dashboard) {
		if frame.Event != ws.EventAvailableTickets {
			continue
		}
		payload, ok := frame.Data.(ws.AvailableTicketsPayload)
		require.True(t, ok)
		require.Len(t, payload.Tickets, 1)
		assert.Equal(t, "SOL1", payload.Tickets[0].ID)
		sawQueue = true
	}
	assert.True(t, sawQueue)
}
