package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/handoff-service/internal/domain"
)

// Announcer pushes lifecycle notices to the operator notification channel.
type Announcer interface {
	TicketCreated(ctx context.Context, ticket *domain.Ticket, claimURL string) error
	TicketClaimed(ctx context.Context, ticket *domain.Ticket, operatorName string) error
	TicketResolved(ctx context.Context, ticket *domain.Ticket, operatorName string) error
	TicketReopened(ctx context.Context, ticket *domain.Ticket, operatorName string) error
}

type webhookPayload struct {
	Content string         `json:"content,omitempty"`
	Embeds  []webhookEmbed `json:"embeds,omitempty"`
}

type webhookEmbed struct {
	Title       string              `json:"title,omitempty"`
	Description string              `json:"description,omitempty"`
	URL         string              `json:"url,omitempty"`
	Color       int                 `json:"color,omitempty"`
	Fields      []webhookEmbedField `json:"fields,omitempty"`
	Timestamp   string              `json:"timestamp,omitempty"`
}

type webhookEmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

const (
	colorPending  = 0xE67E22
	colorClaimed  = 0x2ECC71
	colorResolved = 0x3498DB
	colorReopened = 0xE74C3C
)

// WebhookAnnouncer posts embeds to a Discord webhook URL.
type WebhookAnnouncer struct {
	webhookURL string
	client     *http.Client
	logger     *zap.Logger
}

// NewWebhookAnnouncer builds the announcer.
func NewWebhookAnnouncer(webhookURL string, logger *zap.Logger) *WebhookAnnouncer {
	return &WebhookAnnouncer{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
}

func (a *WebhookAnnouncer) TicketCreated(ctx context.Context, ticket *domain.Ticket, claimURL string) error {
	embed := webhookEmbed{
		Title:       fmt.Sprintf("New support request %s", ticket.ID),
		Description: ticket.Description,
		URL:         claimURL,
		Color:       colorPending,
		Fields: []webhookEmbedField{
			{Name: "Company", Value: ticket.CompanyName, Inline: true},
			{Name: "Contact", Value: ticket.RequesterName, Inline: true},
			{Name: "Category", Value: string(ticket.Category), Inline: true},
		},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	return a.post(ctx, webhookPayload{Embeds: []webhookEmbed{embed}})
}

func (a *WebhookAnnouncer) TicketClaimed(ctx context.Context, ticket *domain.Ticket, operatorName string) error {
	embed := webhookEmbed{
		Title:       fmt.Sprintf("Request %s claimed", ticket.ID),
		Description: fmt.Sprintf("%s is now handling this request.", operatorName),
		Color:       colorClaimed,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	}
	return a.post(ctx, webhookPayload{Embeds: []webhookEmbed{embed}})
}

func (a *WebhookAnnouncer) TicketResolved(ctx context.Context, ticket *domain.Ticket, operatorName string) error {
	embed := webhookEmbed{
		Title:       fmt.Sprintf("Request %s resolved", ticket.ID),
		Description: fmt.Sprintf("Closed by %s.", operatorName),
		Color:       colorResolved,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	}
	return a.post(ctx, webhookPayload{Embeds: []webhookEmbed{embed}})
}

func (a *WebhookAnnouncer) TicketReopened(ctx context.Context, ticket *domain.Ticket, operatorName string) error {
	embed := webhookEmbed{
		Title:       fmt.Sprintf("Request %s reopened", ticket.ID),
		Description: fmt.Sprintf("Reopened by %s and back in the queue.", operatorName),
		Color:       colorReopened,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	}
	return a.post(ctx, webhookPayload{Embeds: []webhookEmbed{embed}})
}

func (a *WebhookAnnouncer) post(ctx context.Context, payload webhookPayload) error {
	if a.webhookURL == "" {
		return nil
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.webhookURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		a.logger.Warn("discord webhook rejected payload", zap.Int("status", resp.StatusCode))
		return fmt.Errorf("discord webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// NopAnnouncer is used when no webhook is configured.
type NopAnnouncer struct{}

func (NopAnnouncer) TicketCreated(context.Context, *domain.Ticket, string) error { return nil }
func (NopAnnouncer) TicketClaimed(context.Context, *domain.Ticket, string) error { return nil }
func (NopAnnouncer) TicketResolved(context.Context, *domain.Ticket, string) error {
	return nil
}
func (NopAnnouncer) TicketReopened(context.Context, *domain.Ticket, string) error {
	return nil
}
