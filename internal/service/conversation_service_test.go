package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/handoff-service/internal/auth"
	"github.com/spec-kit/handoff-service/internal/domain"
	"github.com/spec-kit/handoff-service/internal/observability"
	"github.com/spec-kit/handoff-service/internal/worker"
	"github.com/spec-kit/handoff-service/internal/ws"
)

type convHarness struct {
	hub      *ws.Hub
	registry *ws.Registry
	tickets  *fakeTicketRepo
	messages *fakeMessageRepo
	sender   *fakeSender
	svc      *ConversationService
}

func newConvHarness(t *testing.T) *convHarness {
	t.Helper()
	logger := zap.NewNop()
	hub := ws.NewHub(logger, observability.NewMetrics())
	registry := ws.NewRegistry()
	tickets := newFakeTicketRepo()
	messages := newFakeMessageRepo()
	sender := newFakeSender()
	deliveryWorker := worker.NewDeliveryWorker()
	t.Cleanup(deliveryWorker.Stop)

	gate := NewAccessGate(AccessGateDependencies{
		TokenManager: auth.NewTokenManager("test-secret", 0, 0),
		AnalystRepo:  newFakeAnalystRepo(),
	})
	lifecycle := NewLifecycleService(LifecycleDependencies{
		TicketRepo:     tickets,
		Dispatcher:     newFakeDispatcher(),
		Logger:         logger,
		UnclaimedLimit: 50,
	})
	svc := NewConversationService(ConversationDependencies{
		Hub:          hub,
		Registry:     registry,
		Gate:         gate,
		Lifecycle:    lifecycle,
		MessageRepo:  messages,
		Sender:       sender,
		Delivery:     deliveryWorker,
		Logger:       logger,
		ConfirmDelay: 5 * time.Millisecond,
	})
	return &convHarness{
		hub:      hub,
		registry: registry,
		tickets:  tickets,
		messages: messages,
		sender:   sender,
		svc:      svc,
	}
}

func (h *convHarness) connect(t *testing.T, sessionID, operatorID, name string, role domain.AnalystRole) *ws.Client {
	t.Helper()
	client := h.hub.Attach(sessionID)
	identity := domain.Identity{Name: name, Role: role}
	if operatorID != "" {
		id := operatorID
		identity.OperatorID = &id
	}
	_, err := h.registry.Register(sessionID, identity)
	require.NoError(t, err)
	return client
}

func drain(client *ws.Client) []ws.ServerEnvelope {
	var frames []ws.ServerEnvelope
	for {
		select {
		case env, ok := <-client.Outbox():
			if !ok {
				return frames
			}
			frames = append(frames, env)
		default:
			return frames
		}
	}
}

func frameEvents(frames []ws.ServerEnvelope) []string {
	names := make([]string, 0, len(frames))
	for _, frame := range frames {
		names = append(names, frame.Event)
	}
	return names
}

func TestSubscribeAutoClaimsPendingTicket(t *testing.T) {
	h := newConvHarness(t)
	h.tickets.put(pendingTicket("SOL1"))
	client := h.connect(t, "s1", "op-1", "Alice", domain.RoleAnalyst)

	require.NoError(t, h.svc.Subscribe(context.Background(), "s1", "SOL1"))

	ticket, err := h.tickets.GetByID(context.Background(), "SOL1")
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusClaimed, ticket.Status)
	require.NotNil(t, ticket.ClaimantName)
	assert.Equal(t, "Alice", *ticket.ClaimantName)

	frames := drain(client)
	assert.Contains(t, frameEvents(frames), ws.EventTicketHistory)
}

func TestSubscribeForbiddenWhenClaimedByOther(t *testing.T) {
	h := newConvHarness(t)
	h.tickets.put(pendingTicket("SOL1"))
	opID := "op-1"
	_, err := h.tickets.Claim(context.Background(), "SOL1", &opID, "Alice")
	require.NoError(t, err)

	h.connect(t, "s2", "op-2", "Bob", domain.RoleAnalyst)
	err = h.svc.Subscribe(context.Background(), "s2", "SOL1")
	requireCode(t, err, "FORBIDDEN")
	assert.False(t, h.hub.InRoom("SOL1", "s2"))
}

func TestSupervisorMayJoinClaimedRoom(t *testing.T) {
	h := newConvHarness(t)
	h.tickets.put(pendingTicket("SOL1"))
	opID := "op-1"
	_, err := h.tickets.Claim(context.Background(), "SOL1", &opID, "Alice")
	require.NoError(t, err)

	h.connect(t, "s2", "op-2", "Sam", domain.RoleSupervisor)
	require.NoError(t, h.svc.Subscribe(context.Background(), "s2", "SOL1"))
	assert.True(t, h.hub.InRoom("SOL1", "s2"))
}

func TestPublishRequiresRoomMembership(t *testing.T) {
	h := newConvHarness(t)
	h.tickets.put(pendingTicket("SOL1"))
	h.connect(t, "s1", "op-1", "Alice", domain.RoleAnalyst)

	err := h.svc.Publish(context.Background(), "s1", "SOL1", "hello", "c1")
	requireCode(t, err, "FORBIDDEN")
}

func TestPublishRejectsEmptyContent(t *testing.T) {
	h := newConvHarness(t)
	h.tickets.put(pendingTicket("SOL1"))
	h.connect(t, "s1", "op-1", "Alice", domain.RoleAnalyst)
	require.NoError(t, h.svc.Subscribe(context.Background(), "s1", "SOL1"))

	err := h.svc.Publish(context.Background(), "s1", "SOL1", "   ", "c1")
	requireCode(t, err, "INVALID_INPUT")
}

func TestPublishFansOutToRoomOnly(t *testing.T) {
	h := newConvHarness(t)
	h.tickets.put(pendingTicket("SOL1"))
	h.tickets.put(pendingTicket("SOL2"))

	alice := h.connect(t, "s1", "op-1", "Alice", domain.RoleAnalyst)
	sam := h.connect(t, "s2", "op-2", "Sam", domain.RoleSupervisor)
	carol := h.connect(t, "s3", "op-3", "Carol", domain.RoleAnalyst)

	require.NoError(t, h.svc.Subscribe(context.Background(), "s1", "SOL1"))
	require.NoError(t, h.svc.Subscribe(context.Background(), "s2", "SOL1"))
	require.NoError(t, h.svc.Subscribe(context.Background(), "s3", "SOL2"))
	drain(alice)
	drain(sam)
	drain(carol)

	require.NoError(t, h.svc.Publish(context.Background(), "s1", "SOL1", "hello", "c1"))

	assert.Contains(t, frameEvents(drain(alice)), ws.EventNewMessage)
	assert.Contains(t, frameEvents(drain(sam)), ws.EventNewMessage)
	assert.NotContains(t, frameEvents(drain(carol)), ws.EventNewMessage)
	assert.Equal(t, 1, h.sender.sentCount())
}

func TestPublishGatewayFailureMarksMessageFailed(t *testing.T) {
	h := newConvHarness(t)
	h.tickets.put(pendingTicket("SOL1"))
	alice := h.connect(t, "s1", "op-1", "Alice", domain.RoleAnalyst)
	require.NoError(t, h.svc.Subscribe(context.Background(), "s1", "SOL1"))
	drain(alice)

	h.sender.fail = true
	require.NoError(t, h.svc.Publish(context.Background(), "s1", "SOL1", "hello", "corr-42"))

	stored, err := h.messages.ListByTicket(context.Background(), "SOL1")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, domain.MessageStatusFailed, stored[0].Status)

	frames := drain(alice)
	var sawError bool
	for _, frame := range frames {
		if frame.Event == ws.EventError {
			payload, ok := frame.Data.(ws.ErrorPayload)
			require.True(t, ok)
			assert.Equal(t, "DELIVERY_FAILED", payload.Code)
			assert.Equal(t, "corr-42", payload.CorrelationID)
			sawError = true
		}
	}
	assert.True(t, sawError)
}

func TestPublishStoreFailureNotifiesRoom(t *testing.T) {
	h := newConvHarness(t)
	h.tickets.put(pendingTicket("SOL1"))
	alice := h.connect(t, "s1", "op-1", "Alice", domain.RoleAnalyst)
	sam := h.connect(t, "s2", "op-2", "Sam", domain.RoleSupervisor)
	require.NoError(t, h.svc.Subscribe(context.Background(), "s1", "SOL1"))
	require.NoError(t, h.svc.Subscribe(context.Background(), "s2", "SOL1"))
	drain(alice)
	drain(sam)

	h.messages.failNext = true
	err := h.svc.Publish(context.Background(), "s1", "SOL1", "hello", "corr-7")
	requireCode(t, err, "PERSISTENCE_FAILED")

	// The other room member hears about the failed bubble too.
	var sawError bool
	for _, frame := range drain(sam) {
		if frame.Event == ws.EventError {
			payload, ok := frame.Data.(ws.ErrorPayload)
			require.True(t, ok)
			assert.Equal(t, "PERSISTENCE_FAILED", payload.Code)
			assert.Equal(t, "corr-7", payload.CorrelationID)
			sawError = true
		}
	}
	assert.True(t, sawError)
	assert.NotContains(t, frameEvents(drain(alice)), ws.EventNewMessage)
	assert.Equal(t, 0, h.sender.sentCount())
}

func TestMarkReadIncomingOnly(t *testing.T) {
	h := newConvHarness(t)
	ticket := pendingTicket("SOL1")
	h.tickets.put(ticket)

	incoming, err := h.svc.RouteInbound(context.Background(), ticket, "help")
	require.NoError(t, err)

	author := "Alice"
	outgoing := &domain.Message{
		ID:        "m-out",
		TicketID:  "SOL1",
		Content:   "on it",
		Direction: domain.DirectionOutgoing,
		Author:    &author,
		Status:    domain.MessageStatusSent,
	}
	require.NoError(t, h.messages.Create(context.Background(), outgoing))

	client := h.connect(t, "s1", "op-1", "Alice", domain.RoleAnalyst)
	require.NoError(t, h.svc.Subscribe(context.Background(), "s1", "SOL1"))
	drain(client)

	// Outgoing ids are silently skipped, with no status broadcast.
	require.NoError(t, h.svc.MarkRead(context.Background(), "s1", "SOL1", "m-out"))
	assert.NotContains(t, frameEvents(drain(client)), ws.EventMessageStatus)

	fetched, err := h.messages.GetByID(context.Background(), "m-out")
	require.NoError(t, err)
	assert.Equal(t, domain.MessageStatusSent, fetched.Status)

	require.NoError(t, h.svc.MarkRead(context.Background(), "s1", "SOL1", incoming.ID))
	assert.Contains(t, frameEvents(drain(client)), ws.EventMessageStatus)

	fetched, err = h.messages.GetByID(context.Background(), incoming.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.MessageStatusRead, fetched.Status)
}

func TestMarkReadRejectsForeignTicketMessage(t *testing.T) {
	h := newConvHarness(t)
	h.tickets.put(pendingTicket("SOL1"))
	other := pendingTicket("SOL2")
	h.tickets.put(other)

	foreign, err := h.svc.RouteInbound(context.Background(), other, "hi")
	require.NoError(t, err)

	h.connect(t, "s1", "op-1", "Alice", domain.RoleAnalyst)
	require.NoError(t, h.svc.Subscribe(context.Background(), "s1", "SOL1"))

	err = h.svc.MarkRead(context.Background(), "s1", "SOL1", foreign.ID)
	requireCode(t, err, "NOT_FOUND")
}

func TestPublishConfirmsDeliveryAfterDelay(t *testing.T) {
	h := newConvHarness(t)
	h.tickets.put(pendingTicket("SOL1"))
	h.connect(t, "s1", "op-1", "Alice", domain.RoleAnalyst)
	require.NoError(t, h.svc.Subscribe(context.Background(), "s1", "SOL1"))

	require.NoError(t, h.svc.Publish(context.Background(), "s1", "SOL1", "hello", ""))

	require.Eventually(t, func() bool {
		stored, err := h.messages.ListByTicket(context.Background(), "SOL1")
		if err != nil || len(stored) != 1 {
			return false
		}
		return stored[0].Status == domain.MessageStatusDelivered
	}, time.Second, 5*time.Millisecond)
}

func TestHistoryReplaysInOrder(t *testing.T) {
	h := newConvHarness(t)
	ticket := pendingTicket("SOL1")
	h.tickets.put(ticket)

	for _, content := range []string{"first", "second", "third"} {
		_, err := h.svc.RouteInbound(context.Background(), ticket, content)
		require.NoError(t, err)
	}

	client := h.connect(t, "s1", "op-1", "Alice", domain.RoleAnalyst)
	require.NoError(t, h.svc.Subscribe(context.Background(), "s1", "SOL1"))

	frames := drain(client)
	var history *ws.TicketHistoryPayload
	for _, frame := range frames {
		if frame.Event == ws.EventTicketHistory {
			payload, ok := frame.Data.(ws.TicketHistoryPayload)
			require.True(t, ok)
			history = &payload
		}
	}
	require.NotNil(t, history)
	require.Len(t, history.Messages, 3)
	assert.Equal(t, "first", history.Messages[0].Content)
	assert.Equal(t, "second", history.Messages[1].Content)
	assert.Equal(t, "third", history.Messages[2].Content)
}

func TestDisconnectAnnouncesDeparture(t *testing.T) {
	h := newConvHarness(t)
	h.tickets.put(pendingTicket("SOL1"))
	alice := h.connect(t, "s1", "op-1", "Alice", domain.RoleAnalyst)
	sam := h.connect(t, "s2", "op-2", "Sam", domain.RoleSupervisor)
	require.NoError(t, h.svc.Subscribe(context.Background(), "s1", "SOL1"))
	require.NoError(t, h.svc.Subscribe(context.Background(), "s2", "SOL1"))
	drain(alice)
	drain(sam)

	h.svc.Disconnect("s1")

	assert.Contains(t, frameEvents(drain(sam)), ws.EventMemberLeft)
	assert.False(t, h.hub.InRoom("SOL1", "s1"))
	_, registered := h.registry.Lookup("s1")
	assert.False(t, registered)

	// Claim survives the disconnect.
	ticket, err := h.tickets.GetByID(context.Background(), "SOL1")
	require.NoError(t, err)
	require.NotNil(t, ticket.ClaimantName)
	assert.Equal(t, "Alice", *ticket.ClaimantName)
}

func TestMarkAllReadBroadcastsStatuses(t *testing.T) {
	h := newConvHarness(t)
	ticket := pendingTicket("SOL1")
	h.tickets.put(ticket)
	_, err := h.svc.RouteInbound(context.Background(), ticket, "help")
	require.NoError(t, err)
	_, err = h.svc.RouteInbound(context.Background(), ticket, "please")
	require.NoError(t, err)

	client := h.connect(t, "s1", "op-1", "Alice", domain.RoleAnalyst)
	require.NoError(t, h.svc.Subscribe(context.Background(), "s1", "SOL1"))
	drain(client)

	require.NoError(t, h.svc.MarkAllRead(context.Background(), "s1", "SOL1"))

	statusFrames := 0
	for _, frame := range drain(client) {
		if frame.Event == ws.EventMessageStatus {
			statusFrames++
		}
	}
	assert.Equal(t, 2, statusFrames)

	stored, err := h.messages.ListByTicket(context.Background(), "SOL1")
	require.NoError(t, err)
	for _, msg := range stored {
		assert.Equal(t, domain.MessageStatusRead, msg.Status)
	}
}
