package ws

import (
	"encoding/json"
	"time"

	"github.com/spec-kit/handoff-service/internal/domain"
)

// Client-to-server event names.
const (
	EventAuthenticate      = "authenticate"
	EventSubscribeTicket   = "subscribeTicket"
	EventUnsubscribeTicket = "unsubscribeTicket"
	EventSendMessage       = "sendMessage"
	EventMarkRead          = "markRead"
	EventMarkAllRead       = "markAllRead"
	EventClaimTicket       = "claimTicket"
	EventResolveTicket     = "resolveTicket"
	EventReopenTicket      = "reopenTicket"
	EventListTickets       = "listTickets"
)

// Server-to-client event names.
const (
	EventAuthResult           = "authResult"
	EventTicketHistory        = "ticketHistory"
	EventNewMessage           = "newMessage"
	EventMessageStatus        = "messageStatus"
	EventTicketCreated        = "ticketCreated"
	EventTicketClaimed        = "ticketClaimed"
	EventTicketResolved       = "ticketResolved"
	EventTicketReopened       = "ticketReopened"
	EventAvailableTickets     = "availableTickets"
	EventMemberJoined         = "memberJoined"
	EventMemberLeft           = "memberLeft"
	EventOperatorConnected    = "operatorConnected"
	EventOperatorDisconnected = "operatorDisconnected"
	EventError                = "errorEvent"
)

// ClientEnvelope is the wire frame for inbound events. Data stays raw until the
// handler knows which payload shape to decode.
type ClientEnvelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// ServerEnvelope is the wire frame for outbound events.
type ServerEnvelope struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// AuthenticatePayload carries either an analyst token or a handoff token.
type AuthenticatePayload struct {
	Token string `json:"token"`
}

// SubscribePayload targets one ticket room.
type SubscribePayload struct {
	TicketID string `json:"ticketId"`
}

// SendMessagePayload publishes an outbound message into a ticket room. The
// correlation id echoes back on the resulting error event when delivery fails,
// so the sender can mark the exact message.
type SendMessagePayload struct {
	TicketID      string `json:"ticketId"`
	Content       string `json:"content"`
	CorrelationID string `json:"correlationId,omitempty"`
}

// MarkReadPayload updates read receipts for a batch of messages.
type MarkReadPayload struct {
	TicketID   string   `json:"ticketId"`
	MessageIDs []string `json:"messageIds"`
}

// MarkAllReadPayload stamps every unread incoming message of a ticket.
type MarkAllReadPayload struct {
	TicketID string `json:"ticketId"`
}

// ClaimPayload targets one ticket for a lifecycle transition.
type ClaimPayload struct {
	TicketID string `json:"ticketId"`
}

// ResolvePayload closes a ticket with an optional note.
type ResolvePayload struct {
	TicketID string `json:"ticketId"`
	Note     string `json:"note,omitempty"`
}

// AuthResultPayload confirms a successful authentication.
type AuthResultPayload struct {
	OK         bool   `json:"ok"`
	SessionID  string `json:"sessionId"`
	Name       string `json:"name"`
	OperatorID string `json:"operatorId,omitempty"`
	Role       string `json:"role,omitempty"`
	TicketID   string `json:"ticketId,omitempty"`
}

// MessageView is the outbound shape of a stored message.
type MessageView struct {
	ID          string     `json:"id"`
	TicketID    string     `json:"ticketId"`
	Content     string     `json:"content"`
	Direction   string     `json:"direction"`
	Author      string     `json:"author,omitempty"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"createdAt"`
	DeliveredAt *time.Time `json:"deliveredAt,omitempty"`
	ReadAt      *time.Time `json:"readAt,omitempty"`
}

// NewMessageView maps a domain message for the wire.
func NewMessageView(m *domain.Message) MessageView {
	view := MessageView{
		ID:          m.ID,
		TicketID:    m.TicketID,
		Content:     m.Content,
		Direction:   string(m.Direction),
		Status:      string(m.Status),
		CreatedAt:   m.CreatedAt,
		DeliveredAt: m.DeliveredAt,
		ReadAt:      m.ReadAt,
	}
	if m.Author != nil {
		view.Author = *m.Author
	}
	return view
}

// TicketView is the outbound shape of a ticket.
type TicketView struct {
	ID            string     `json:"id"`
	ChannelID     string     `json:"channelId"`
	RequesterName string     `json:"requesterName"`
	CompanyName   string     `json:"companyName"`
	TaxID         string     `json:"taxId"`
	Category      string     `json:"category"`
	Description   string     `json:"description"`
	Status        string     `json:"status"`
	ClaimantName  string     `json:"claimantName,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	ResolvedAt    *time.Time `json:"resolvedAt,omitempty"`
}

// NewTicketView maps a domain ticket for the wire.
func NewTicketView(t *domain.Ticket) TicketView {
	view := TicketView{
		ID:            t.ID,
		ChannelID:     t.ChannelID,
		RequesterName: t.RequesterName,
		CompanyName:   t.CompanyName,
		TaxID:         t.TaxID,
		Category:      string(t.Category),
		Description:   string(t.Description),
		Status:        string(t.Status),
		CreatedAt:     t.CreatedAt,
		ResolvedAt:    t.ResolvedAt,
	}
	if t.ClaimantName != nil {
		view.ClaimantName = *t.ClaimantName
	}
	return view
}

// TicketHistoryPayload replays the stored conversation on subscribe.
type TicketHistoryPayload struct {
	Ticket   TicketView    `json:"ticket"`
	Messages []MessageView `json:"messages"`
}

// MessageStatusPayload announces a delivery or read transition.
type MessageStatusPayload struct {
	TicketID  string `json:"ticketId"`
	MessageID string `json:"messageId"`
	Status    string `json:"status"`
}

// TicketLifecyclePayload announces claim, resolve and reopen transitions.
type TicketLifecyclePayload struct {
	TicketID     string `json:"ticketId"`
	Status       string `json:"status"`
	OperatorName string `json:"operatorName,omitempty"`
	OperatorID   string `json:"operatorId,omitempty"`
	Note         string `json:"note,omitempty"`
	Reclaim      bool   `json:"reclaim,omitempty"`
}

// AvailableTicketsPayload lists unclaimed tickets for the dashboard.
type AvailableTicketsPayload struct {
	Tickets []TicketView `json:"tickets"`
}

// MemberPayload announces a session joining or leaving a room.
type MemberPayload struct {
	TicketID     string `json:"ticketId"`
	SessionID    string `json:"sessionId"`
	OperatorName string `json:"operatorName"`
}

// PresencePayload announces an operator connecting or disconnecting.
type PresencePayload struct {
	SessionID    string `json:"sessionId"`
	OperatorName string `json:"operatorName"`
}

// ErrorPayload is delivered to the requesting session only.
type ErrorPayload struct {
	Code          string         `json:"code"`
	Message       string         `json:"message"`
	CorrelationID string         `json:"correlationId,omitempty"`
	Details       map[string]any `json:"details,omitempty"`
}
