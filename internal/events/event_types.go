package events

import (
	"time"

	"github.com/spec-kit/handoff-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated     EventType = "ticket_created"
	EventTicketClaimed     EventType = "ticket_claimed"
	EventTicketResolved    EventType = "ticket_resolved"
	EventTicketReopened    EventType = "ticket_reopened"
	EventTicketTransferred EventType = "ticket_transferred"
)

// Actor identifies the operator behind a lifecycle transition. OperatorID is
// empty for legacy claims arriving from the notification channel.
type Actor struct {
	OperatorID string `json:"operator_id,omitempty"`
	Name       string `json:"name"`
}

// Event represents a lifecycle event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload carries the freshly registered ticket.
type TicketCreatedPayload struct {
	ChannelID     string                `json:"channel_id"`
	RequesterName string                `json:"requester_name"`
	CompanyName   string                `json:"company_name"`
	Category      domain.TicketCategory `json:"category"`
	Description   string                `json:"description"`
}

// TicketClaimedPayload payload.
type TicketClaimedPayload struct {
	OperatorName string  `json:"operator_name"`
	OperatorID   *string `json:"operator_id,omitempty"`
	Reclaim      bool    `json:"reclaim"`
}

// TicketResolvedPayload payload.
type TicketResolvedPayload struct {
	OperatorName string `json:"operator_name"`
	Note         string `json:"note,omitempty"`
}

// TicketReopenedPayload payload.
type TicketReopenedPayload struct {
	OperatorName string `json:"operator_name"`
}

// TicketTransferredPayload payload.
type TicketTransferredPayload struct {
	FromName string  `json:"from_name,omitempty"`
	ToName   string  `json:"to_name"`
	ToID     *string `json:"to_id,omitempty"`
}
