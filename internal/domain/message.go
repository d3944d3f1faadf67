package domain

import "time"

// MessageDirection indicates which side of the conversation authored a message.
type MessageDirection string

const (
	DirectionIncoming MessageDirection = "incoming"
	DirectionOutgoing MessageDirection = "outgoing"
)

// MessageStatus tracks the delivery progression of a message.
type MessageStatus string

const (
	MessageStatusSent      MessageStatus = "sent"
	MessageStatusDelivered MessageStatus = "delivered"
	MessageStatusRead      MessageStatus = "read"
	MessageStatusFailed    MessageStatus = "failed"
)

// Message is one entry in a ticket conversation. Author is nil for incoming
// messages (the requester) and holds the operator display name otherwise.
type Message struct {
	ID          string
	TicketID    string
	Content     string
	Direction   MessageDirection
	Author      *string
	Status      MessageStatus
	CreatedAt   time.Time
	DeliveredAt *time.Time
	ReadAt      *time.Time
}
