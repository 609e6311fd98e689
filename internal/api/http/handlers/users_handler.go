package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/sales-erp-service/internal/api/dto"
	"github.com/spec-kit/sales-erp-service/internal/auth"
	"github.com/spec-kit/sales-erp-service/internal/domain"
	"github.com/spec-kit/sales-erp-service/internal/service"
)

// UsersHandler exposes the admin-gated principal administration endpoints.
type UsersHandler struct {
	users *service.UserService
}

// NewUsersHandler constructs handler.
func NewUsersHandler(userService *service.UserService) *UsersHandler {
	return &UsersHandler{users: userService}
}

// List handles GET /api/v1/users.
func (h *UsersHandler) List(c *fiber.Ctx) error {
	users, err := h.users.ListUsers(c.Context())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"users": userResponses(users)}})
}

// Count handles GET /api/v1/users/count.
func (h *UsersHandler) Count(c *fiber.Ctx) error {
	count, err := h.users.CountUsers(c.Context())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"total_users": count}})
}

// ListEmployees handles GET /api/v1/employees.
func (h *UsersHandler) ListEmployees(c *fiber.Ctx) error {
	employees, err := h.users.ListEmployees(c.Context())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"employees": userResponses(employees)}})
}

// UpdateEmployee handles PUT /api/v1/employees/:id.
func (h *UsersHandler) UpdateEmployee(c *fiber.Ctx) error {
	var req dto.UserUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}

	input := service.UpdateEmployeeInput{
		FullName:       req.FullName,
		PhoneNumber:    req.PhoneNumber,
		CallTarget:     req.CallTarget,
		MonthlyTarget:  req.MonthlyTarget,
		TeamAllocation: req.TeamAllocation,
	}
	if req.Role != nil {
		role := domain.Role(*req.Role)
		input.Role = &role
	}

	user, err := h.users.UpdateEmployee(c.Context(), actorEmail(c), c.Params("id"), input)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"user": dto.NewUserResponse(user)}})
}

// DeleteEmployee handles DELETE /api/v1/employees/:id.
func (h *UsersHandler) DeleteEmployee(c *fiber.Ctx) error {
	if err := h.users.DeleteEmployee(c.Context(), actorEmail(c), c.Params("id")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"status": "deleted"}})
}

func userResponses(users []domain.User) []dto.UserResponse {
	responses := make([]dto.UserResponse, 0, len(users))
	for i := range users {
		responses = append(responses, dto.NewUserResponse(&users[i]))
	}
	return responses
}

func actorEmail(c *fiber.Ctx) string {
	if principal, ok := auth.PrincipalFromContext(c); ok {
		return principal.User.Email
	}
	return ""
}
