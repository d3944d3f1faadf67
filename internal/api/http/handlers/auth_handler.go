package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/handoff-service/internal/api/dto"
	"github.com/spec-kit/handoff-service/internal/domain"
	"github.com/spec-kit/handoff-service/internal/service"
	apperrors "github.com/spec-kit/handoff-service/pkg/util"
)

// AuthHandler manages analyst authentication endpoints.
type AuthHandler struct {
	service *service.AuthService
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{service: authService}
}

// Login POST /auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewInvalidInput("invalid payload", nil)
	}

	result, err := h.service.Login(c.Context(), req.Username, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.LoginResponse{
		Token:     result.Token,
		ExpiresAt: result.ExpiresAt,
		Analyst:   analystResponse(result.Analyst),
	}})
}

func analystResponse(analyst *domain.Analyst) dto.AnalystResponse {
	return dto.AnalystResponse{
		ID:        analyst.ID,
		Username:  analyst.Username,
		FullName:  analyst.FullName,
		Email:     analyst.Email,
		Role:      string(analyst.Role),
		DiscordID: analyst.DiscordID,
		Active:    analyst.Active,
		CreatedAt: analyst.CreatedAt,
		UpdatedAt: analyst.UpdatedAt,
	}
}
