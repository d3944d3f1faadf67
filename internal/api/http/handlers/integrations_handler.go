package handlers

import (
	"crypto/subtle"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/handoff-service/internal/api/dto"
	"github.com/spec-kit/handoff-service/internal/domain"
	"github.com/spec-kit/handoff-service/internal/service"
	apperrors "github.com/spec-kit/handoff-service/pkg/util"
)

// IntegrationsHandler serves the notification-channel bot and the requester
// gateway. Both callers authenticate with a shared token, not an analyst
// account.
type IntegrationsHandler struct {
	lifecycle        *service.LifecycleService
	intake           *service.IntakeService
	auth             *service.AuthService
	integrationToken string
	portalBase       string
}

// NewIntegrationsHandler constructs handler.
func NewIntegrationsHandler(lifecycle *service.LifecycleService, intake *service.IntakeService, authService *service.AuthService, integrationToken, portalBase string) *IntegrationsHandler {
	return &IntegrationsHandler{
		lifecycle:        lifecycle,
		intake:           intake,
		auth:             authService,
		integrationToken: integrationToken,
		portalBase:       portalBase,
	}
}

// RequireIntegrationToken guards integration routes with the shared secret.
func (h *IntegrationsHandler) RequireIntegrationToken(c *fiber.Ctx) error {
	if h.integrationToken == "" {
		return apperrors.NewUnauthorized("integration token not configured")
	}
	provided := strings.TrimPrefix(c.Get("Authorization"), "Bearer ")
	if subtle.ConstantTimeCompare([]byte(provided), []byte(h.integrationToken)) != 1 {
		return apperrors.NewUnauthorized("invalid integration token")
	}
	return c.Next()
}

// DiscordClaim POST /integrations/discord/claim. Claims the ticket for the
// named operator and returns a ticket-scoped token plus the portal link the
// bot sends back to the operator.
func (h *IntegrationsHandler) DiscordClaim(c *fiber.Ctx) error {
	req, identity, err := h.parseAction(c)
	if err != nil {
		return err
	}

	ticket, _, err := h.lifecycle.Claim(c.Context(), req.TicketID, identity)
	if err != nil {
		return err
	}

	token, expiresAt, err := h.auth.MintHandoffToken(c.Context(), ticket.ID, identity.Name, req.DiscordID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.DiscordClaimResponse{
		Ticket:    ticketResponse(ticket),
		Token:     token,
		ExpiresAt: expiresAt,
		PortalURL: fmt.Sprintf("%s/tickets/%s?token=%s", h.portalBase, ticket.ID, token),
	}})
}

// DiscordResolve POST /integrations/discord/resolve.
func (h *IntegrationsHandler) DiscordResolve(c *fiber.Ctx) error {
	req, identity, err := h.parseAction(c)
	if err != nil {
		return err
	}
	ticket, err := h.lifecycle.Resolve(c.Context(), req.TicketID, identity, "")
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// DiscordReopen POST /integrations/discord/reopen.
func (h *IntegrationsHandler) DiscordReopen(c *fiber.Ctx) error {
	req, identity, err := h.parseAction(c)
	if err != nil {
		return err
	}
	ticket, err := h.lifecycle.Reopen(c.Context(), req.TicketID, identity)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// WhatsAppInbound POST /integrations/whatsapp/inbound. One requester text;
// the response body carries the scripted reply for the gateway to send back.
func (h *IntegrationsHandler) WhatsAppInbound(c *fiber.Ctx) error {
	var req dto.WhatsAppInboundRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewInvalidInput("invalid payload", nil)
	}

	reply, err := h.intake.HandleInbound(c.Context(), req.ChannelID, req.Text)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.WhatsAppInboundResponse{Reply: reply}})
}

func (h *IntegrationsHandler) parseAction(c *fiber.Ctx) (dto.DiscordActionRequest, domain.Identity, error) {
	var req dto.DiscordActionRequest
	if err := c.BodyParser(&req); err != nil {
		return req, domain.Identity{}, apperrors.NewInvalidInput("invalid payload", nil)
	}
	if req.TicketID == "" {
		return req, domain.Identity{}, apperrors.NewInvalidInput("ticket_id required", nil)
	}
	name := strings.TrimSpace(req.OperatorName)
	if len(name) < 2 {
		return req, domain.Identity{}, apperrors.NewInvalidIdentity("operator name must be at least 2 characters")
	}

	identity := domain.Identity{Name: name}
	if req.DiscordID != "" {
		discordID := req.DiscordID
		identity.DiscordID = &discordID
	}
	return req, identity, nil
}
