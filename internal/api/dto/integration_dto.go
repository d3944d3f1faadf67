package dto

import "time"

// DiscordActionRequest is sent by the notification-channel bot on behalf of an
// operator reacting to an announcement.
type DiscordActionRequest struct {
	TicketID     string `json:"ticket_id"`
	OperatorName string `json:"operator_name"`
	DiscordID    string `json:"discord_id"`
}

// DiscordClaimResponse returns the handoff credentials for the portal.
type DiscordClaimResponse struct {
	Ticket    TicketResponse `json:"ticket"`
	Token     string         `json:"token"`
	ExpiresAt time.Time      `json:"expires_at"`
	PortalURL string         `json:"portal_url"`
}

// WhatsAppInboundRequest is one text received from the requester gateway.
type WhatsAppInboundRequest struct {
	ChannelID string `json:"channel_id"`
	Text      string `json:"text"`
}

// WhatsAppInboundResponse carries the scripted reply, if any.
type WhatsAppInboundResponse struct {
	Reply string `json:"reply,omitempty"`
}
