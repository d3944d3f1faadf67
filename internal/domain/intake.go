package domain

import "time"

// IntakeStep enumerates the scripted dialogue states, in collection order.
type IntakeStep string

const (
	StepAwaitingCompany     IntakeStep = "awaiting_company"
	StepAwaitingTaxID       IntakeStep = "awaiting_tax_id"
	StepAwaitingContact     IntakeStep = "awaiting_contact"
	StepAwaitingCategory    IntakeStep = "awaiting_category"
	StepAwaitingDescription IntakeStep = "awaiting_description"
	StepDone                IntakeStep = "done"
)

// IntakeSession is the per-channel dialogue state collected step by step.
// Stored in Redis with a TTL so abandoned dialogues expire on their own.
type IntakeSession struct {
	ChannelID     string         `json:"channel_id"`
	Step          IntakeStep     `json:"step"`
	CompanyName   string         `json:"company_name,omitempty"`
	TaxID         string         `json:"tax_id,omitempty"`
	ContactName   string         `json:"contact_name,omitempty"`
	Category      TicketCategory `json:"category,omitempty"`
	Description   string         `json:"description,omitempty"`
	TicketID      string         `json:"ticket_id,omitempty"`
	StartedAt     time.Time      `json:"started_at"`
	CompletedAt   *time.Time     `json:"completed_at,omitempty"`
}
