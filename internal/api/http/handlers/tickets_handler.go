package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/handoff-service/internal/api/dto"
	"github.com/spec-kit/handoff-service/internal/auth"
	"github.com/spec-kit/handoff-service/internal/domain"
	"github.com/spec-kit/handoff-service/internal/service"
	apperrors "github.com/spec-kit/handoff-service/pkg/util"
)

// TicketsHandler manages dashboard ticket endpoints.
type TicketsHandler struct {
	lifecycle    *service.LifecycleService
	conversation *service.ConversationService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(lifecycle *service.LifecycleService, conversation *service.ConversationService) *TicketsHandler {
	return &TicketsHandler{lifecycle: lifecycle, conversation: conversation}
}

// List GET /tickets.
func (h *TicketsHandler) List(c *fiber.Ctx) error {
	limit := parseInt(c.Query("limit"), 20)
	offset := parseInt(c.Query("offset"), 0)
	tickets, err := h.lifecycle.List(c.Context(), limit, offset)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponses(tickets)})
}

// ListUnclaimed GET /tickets/unclaimed.
func (h *TicketsHandler) ListUnclaimed(c *fiber.Ctx) error {
	tickets, err := h.lifecycle.ListUnclaimed(c.Context())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponses(tickets)})
}

// ListMine GET /tickets/mine.
func (h *TicketsHandler) ListMine(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.Analyst == nil {
		return apperrors.NewUnauthorized("analyst required")
	}
	tickets, err := h.lifecycle.ListForOperator(c.Context(), principal.Analyst.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponses(tickets)})
}

// Get GET /tickets/:id.
func (h *TicketsHandler) Get(c *fiber.Ctx) error {
	ticket, err := h.lifecycle.Get(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	messages, err := h.conversation.History(c.Context(), ticket.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.TicketDetailResponse{
		Ticket:   ticketResponse(ticket),
		Messages: messageResponses(messages),
	}})
}

// Claim POST /tickets/:id/claim.
func (h *TicketsHandler) Claim(c *fiber.Ctx) error {
	identity, err := identityFromContext(c)
	if err != nil {
		return err
	}
	ticket, _, err := h.lifecycle.Claim(c.Context(), c.Params("id"), identity)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// Resolve POST /tickets/:id/resolve.
func (h *TicketsHandler) Resolve(c *fiber.Ctx) error {
	identity, err := identityFromContext(c)
	if err != nil {
		return err
	}
	var req dto.ResolveTicketRequest
	_ = c.BodyParser(&req)

	ticket, err := h.lifecycle.Resolve(c.Context(), c.Params("id"), identity, req.Note)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// Reopen POST /tickets/:id/reopen.
func (h *TicketsHandler) Reopen(c *fiber.Ctx) error {
	identity, err := identityFromContext(c)
	if err != nil {
		return err
	}
	ticket, err := h.lifecycle.Reopen(c.Context(), c.Params("id"), identity)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// Transfer POST /tickets/:id/transfer.
func (h *TicketsHandler) Transfer(c *fiber.Ctx) error {
	identity, err := identityFromContext(c)
	if err != nil {
		return err
	}
	var req dto.TransferTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewInvalidInput("invalid payload", nil)
	}

	ticket, err := h.lifecycle.Transfer(c.Context(), c.Params("id"), identity, req.OperatorID, req.OperatorName)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

func identityFromContext(c *fiber.Ctx) (domain.Identity, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.Analyst == nil {
		return domain.Identity{}, apperrors.NewUnauthorized("analyst required")
	}
	id := principal.Analyst.ID
	return domain.Identity{
		OperatorID: &id,
		Name:       principal.Analyst.FullName,
		Role:       principal.Analyst.Role,
		DiscordID:  principal.Analyst.DiscordID,
	}, nil
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed < 0 {
		return def
	}
	return parsed
}

func ticketResponse(ticket *domain.Ticket) dto.TicketResponse {
	return dto.TicketResponse{
		ID:            ticket.ID,
		ChannelID:     ticket.ChannelID,
		RequesterName: ticket.RequesterName,
		CompanyName:   ticket.CompanyName,
		TaxID:         service.FormatTaxID(ticket.TaxID),
		Category:      string(ticket.Category),
		Description:   ticket.Description,
		Status:        string(ticket.Status),
		ClaimantName:  ticket.ClaimantName,
		CreatedAt:     ticket.CreatedAt,
		ResolvedAt:    ticket.ResolvedAt,
	}
}

func ticketResponses(tickets []domain.Ticket) []dto.TicketResponse {
	items := make([]dto.TicketResponse, 0, len(tickets))
	for i := range tickets {
		items = append(items, ticketResponse(&tickets[i]))
	}
	return items
}

func messageResponses(messages []domain.Message) []dto.MessageResponse {
	items := make([]dto.MessageResponse, 0, len(messages))
	for i := range messages {
		msg := &messages[i]
		items = append(items, dto.MessageResponse{
			ID:          msg.ID,
			TicketID:    msg.TicketID,
			Content:     msg.Content,
			Direction:   string(msg.Direction),
			Author:      msg.Author,
			Status:      string(msg.Status),
			CreatedAt:   msg.CreatedAt,
			DeliveredAt: msg.DeliveredAt,
			ReadAt:      msg.ReadAt,
		})
	}
	return items
}
