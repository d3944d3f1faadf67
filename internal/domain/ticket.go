package domain

import "time"

// TicketStatus enumerates lifecycle states for support requests.
type TicketStatus string

const (
	TicketStatusPending  TicketStatus = "pending"
	TicketStatusClaimed  TicketStatus = "claimed"
	TicketStatusResolved TicketStatus = "resolved"
)

// TicketCategory enumerates the intake menu options.
type TicketCategory string

const (
	CategoryPOSDown   TicketCategory = "pos_down"
	CategoryPromotion TicketCategory = "promotion"
	CategoryInventory TicketCategory = "inventory"
	CategoryInvoice   TicketCategory = "invoice"
	CategoryOther     TicketCategory = "other"
)

// Ticket is the aggregate for a support request collected over the inbound channel.
// Lifecycle invariant: Status == claimed iff ClaimantName is non-nil. Status is
// mutated only through the lifecycle service, never by transport code.
type Ticket struct {
	ID                string
	ChannelID         string
	RequesterName     string
	CompanyName       string
	TaxID             string
	Category          TicketCategory
	Description       string
	Status            TicketStatus
	ClaimantOperator  *string
	ClaimantName      *string
	CreatedAt         time.Time
	ResolvedAt        *time.Time
}

// Claimed reports whether the ticket has an active claimant.
func (t *Ticket) Claimed() bool {
	return t.ClaimantName != nil
}

// ClaimedBy reports whether the given identity already holds the claim.
// Matching prefers the operator id; legacy claims without an operator id
// fall back to the display name.
func (t *Ticket) ClaimedBy(operatorID *string, operatorName string) bool {
	if t.ClaimantName == nil {
		return false
	}
	if operatorID != nil && t.ClaimantOperator != nil {
		return *t.ClaimantOperator == *operatorID
	}
	if operatorID == nil && t.ClaimantOperator == nil {
		return *t.ClaimantName == operatorName
	}
	return false
}
