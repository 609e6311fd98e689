package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/sales-erp-service/internal/domain"
	apperrors "github.com/spec-kit/sales-erp-service/pkg/util"
)

// RequireRole gates an operation behind a single exact-match role. There is
// no role hierarchy: ADMIN does not imply EMPLOYEE.
func RequireRole(required domain.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return apperrors.NewNotAuthenticated()
		}
		if principal.Role != required {
			return apperrors.NewInsufficientRole()
		}
		return c.Next()
	}
}

// RequireAuthenticated ensures the caller is authenticated, any role.
func RequireAuthenticated() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := PrincipalFromContext(c); !ok {
			return apperrors.NewNotAuthenticated()
		}
		return c.Next()
	}
}
