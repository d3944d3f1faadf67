package domain

import "time"

// PlaceholderOperatorName is used when a session publishes before registering an
// identity. Message flow is never blocked on a missing identity.
const PlaceholderOperatorName = "Operator"

// Identity describes who a connected session is acting as. OperatorID is nil for
// legacy sessions sourced from the notification channel, which only carry a
// display name.
type Identity struct {
	OperatorID *string
	Name       string
	Role       AnalystRole
	DiscordID  *string
	// TicketID restricts a handoff-token identity to a single ticket room.
	TicketID string
}

// Legacy reports whether the identity lacks a stable operator id.
func (i Identity) Legacy() bool {
	return i.OperatorID == nil
}

// PlaceholderIdentity is returned for unregistered sessions.
func PlaceholderIdentity() Identity {
	return Identity{Name: PlaceholderOperatorName}
}

// Session is one live real-time connection from an operator client. Sessions are
// ephemeral and never persisted; all state is rebuilt on reconnect.
type Session struct {
	ID          string
	Identity    Identity
	ConnectedAt time.Time
}
