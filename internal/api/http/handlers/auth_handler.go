package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/sales-erp-service/internal/api/dto"
	"github.com/spec-kit/sales-erp-service/internal/auth"
	"github.com/spec-kit/sales-erp-service/internal/domain"
	"github.com/spec-kit/sales-erp-service/internal/service"
)

// AuthHandler exposes login, refresh and registration endpoints.
type AuthHandler struct {
	auth *service.AuthService
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: authService}
}

// Login handles POST /api/v1/auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	if req.Email == "" || req.Password == "" {
		return fiber.NewError(http.StatusBadRequest, "email and password required")
	}

	user, token, exp, err := h.auth.Login(c.Context(), req.Email, req.Password)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"data": fiber.Map{
			"user": dto.NewUserResponse(user),
			"auth": dto.AuthResponse{Token: token, ExpiresAt: exp},
		},
	})
}

// Refresh handles POST /api/v1/auth/refresh. The presented token may come
// from the body or the Authorization header.
func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	var req dto.RefreshRequest
	if err := c.BodyParser(&req); err != nil && len(c.Body()) > 0 {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	token := req.Token
	if token == "" {
		token = auth.BearerToken(c)
	}
	if token == "" {
		return fiber.NewError(http.StatusBadRequest, "token required")
	}

	user, pair, err := h.auth.Refresh(c.Context(), token)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"data": fiber.Map{
			"user": dto.NewUserResponse(user),
			"auth": dto.TokenPairResponse{
				AccessToken:      pair.AccessToken,
				AccessExpiresAt:  pair.AccessExpiresAt,
				RefreshToken:     pair.RefreshToken,
				RefreshExpiresAt: pair.RefreshExpiresAt,
			},
		},
	})
}

// Register handles POST /api/v1/auth/register. The route is admin-gated;
// no token is issued for the new account.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}

	user, err := h.auth.Register(c.Context(), service.RegisterInput{
		FullName:       req.FullName,
		Email:          req.Email,
		Password:       req.Password,
		PhoneNumber:    req.PhoneNumber,
		Role:           domain.Role(req.Role),
		CallTarget:     req.CallTarget,
		MonthlyTarget:  req.MonthlyTarget,
		TeamAllocation: req.TeamAllocation,
	})
	if err != nil {
		return err
	}

	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"data": fiber.Map{"user": dto.NewUserResponse(user)},
	})
}

// Me handles GET /api/v1/auth/me.
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, "authentication required")
	}
	return c.JSON(fiber.Map{
		"data": fiber.Map{"user": dto.NewUserResponse(principal.User)},
	})
}
