package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/handoff-service/internal/api/dto"
	"github.com/spec-kit/handoff-service/internal/domain"
	"github.com/spec-kit/handoff-service/internal/service"
	apperrors "github.com/spec-kit/handoff-service/pkg/util"
)

// AnalystsHandler manages operator account endpoints.
type AnalystsHandler struct {
	service *service.AnalystService
}

// NewAnalystsHandler constructs handler.
func NewAnalystsHandler(analystService *service.AnalystService) *AnalystsHandler {
	return &AnalystsHandler{service: analystService}
}

// Create POST /analysts.
func (h *AnalystsHandler) Create(c *fiber.Ctx) error {
	var req dto.CreateAnalystRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewInvalidInput("invalid payload", nil)
	}

	analyst, err := h.service.Create(c.Context(), service.AnalystCreateInput{
		Username:  req.Username,
		Password:  req.Password,
		FullName:  req.FullName,
		Email:     req.Email,
		Role:      domain.AnalystRole(req.Role),
		DiscordID: req.DiscordID,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": analystResponse(analyst)})
}

// Update PATCH /analysts/:id.
func (h *AnalystsHandler) Update(c *fiber.Ctx) error {
	var req dto.UpdateAnalystRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewInvalidInput("invalid payload", nil)
	}

	input := service.AnalystUpdateInput{
		Password:  req.Password,
		FullName:  req.FullName,
		Email:     req.Email,
		DiscordID: req.DiscordID,
		Active:    req.Active,
	}
	if req.Role != nil {
		role := domain.AnalystRole(*req.Role)
		input.Role = &role
	}

	analyst, err := h.service.Update(c.Context(), c.Params("id"), input)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": analystResponse(analyst)})
}

// Deactivate DELETE /analysts/:id.
func (h *AnalystsHandler) Deactivate(c *fiber.Ctx) error {
	if err := h.service.Deactivate(c.Context(), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Get GET /analysts/:id.
func (h *AnalystsHandler) Get(c *fiber.Ctx) error {
	analyst, err := h.service.Get(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": analystResponse(analyst)})
}

// List GET /analysts.
func (h *AnalystsHandler) List(c *fiber.Ctx) error {
	includeInactive := c.QueryBool("include_inactive", false)
	analysts, err := h.service.List(c.Context(), includeInactive)
	if err != nil {
		return err
	}
	items := make([]dto.AnalystResponse, 0, len(analysts))
	for i := range analysts {
		items = append(items, analystResponse(&analysts[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}
