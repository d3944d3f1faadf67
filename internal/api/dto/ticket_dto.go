package dto

import "time"

// TicketResponse is the outward ticket shape.
type TicketResponse struct {
	ID            string     `json:"id"`
	ChannelID     string     `json:"channel_id"`
	RequesterName string     `json:"requester_name"`
	CompanyName   string     `json:"company_name"`
	TaxID         string     `json:"tax_id"`
	Category      string     `json:"category"`
	Description   string     `json:"description"`
	Status        string     `json:"status"`
	ClaimantName  *string    `json:"claimant_name,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	ResolvedAt    *time.Time `json:"resolved_at,omitempty"`
}

// MessageResponse is the outward message shape.
type MessageResponse struct {
	ID          string     `json:"id"`
	TicketID    string     `json:"ticket_id"`
	Content     string     `json:"content"`
	Direction   string     `json:"direction"`
	Author      *string    `json:"author,omitempty"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
	ReadAt      *time.Time `json:"read_at,omitempty"`
}

// TicketDetailResponse pairs a ticket with its conversation.
type TicketDetailResponse struct {
	Ticket   TicketResponse    `json:"ticket"`
	Messages []MessageResponse `json:"messages"`
}

// ResolveTicketRequest closes a ticket with an optional note.
type ResolveTicketRequest struct {
	Note string `json:"note"`
}

// TransferTicketRequest hands a claimed ticket to another operator.
type TransferTicketRequest struct {
	OperatorID   *string `json:"operator_id"`
	OperatorName string  `json:"operator_name"`
}
