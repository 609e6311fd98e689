package auth

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/sales-erp-service/internal/domain"
	"github.com/spec-kit/sales-erp-service/internal/observability"
	"github.com/spec-kit/sales-erp-service/internal/repository"
)

const principalKey = "auth_principal"

// Bearer scheme marker, case-sensitive per RFC usage in the clients we
// serve. Anything else counts as "no token supplied".
const bearerPrefix = "Bearer "

// Principal represents the authenticated caller for one request. Role is
// re-resolved from the user store at gate time, never taken from the token
// claim, so a role change takes effect on the next request.
type Principal struct {
	User *domain.User
	Role domain.Role
}

// Middleware is the per-request authentication gate. It never rejects a
// request itself: on any failure it passes control onward unauthenticated
// and leaves rejection to the role guards on protected routes.
type Middleware struct {
	tokens      *TokenManager
	users       repository.UserRepository
	publicPaths []string
	logger      *zap.Logger
	metrics     *observability.Metrics
}

// NewMiddleware constructs the gate. publicPaths are matched exact-or-prefix
// against the request path before any header parsing.
func NewMiddleware(tokens *TokenManager, users repository.UserRepository, publicPaths []string, logger *zap.Logger, metrics *observability.Metrics) *Middleware {
	return &Middleware{tokens: tokens, users: users, publicPaths: publicPaths, logger: logger, metrics: metrics}
}

// Handle runs once per inbound request.
func (m *Middleware) Handle(c *fiber.Ctx) error {
	if m.isPublic(c.Path()) {
		return c.Next()
	}

	tokenStr := BearerToken(c)
	if tokenStr == "" {
		m.metrics.RecordAuthOutcome(observability.AuthOutcomeAnonymous)
		return c.Next()
	}

	claims, err := m.tokens.Verify(tokenStr)
	if err != nil {
		// Expired vs malformed matters for operators, never for clients.
		if errors.Is(err, ErrTokenExpired) {
			m.metrics.RecordAuthOutcome(observability.AuthOutcomeExpiredToken)
			m.logger.Debug("expired token presented", zap.String("path", c.Path()))
		} else {
			m.metrics.RecordAuthOutcome(observability.AuthOutcomeRejectedToken)
			m.logger.Warn("token rejected", zap.String("path", c.Path()), zap.Error(err))
		}
		return c.Next()
	}

	// Refresh tokens carry no role claim and only authorize re-issuance,
	// not request authentication.
	if claims.Role == "" {
		m.logger.Warn("refresh token presented as bearer credential", zap.String("path", c.Path()))
		return c.Next()
	}

	user, err := m.users.GetByEmail(c.Context(), claims.Subject)
	if err != nil {
		m.logger.Warn("token subject has no principal",
			zap.String("path", c.Path()), zap.Error(err))
		return c.Next()
	}

	if !m.tokens.IsValidFor(tokenStr, user.Email) {
		return c.Next()
	}

	c.Locals(principalKey, &Principal{User: user, Role: user.Role})
	m.metrics.RecordAuthOutcome(observability.AuthOutcomeAuthenticated)
	return c.Next()
}

func (m *Middleware) isPublic(path string) bool {
	for _, p := range m.publicPaths {
		if path == p || strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// BearerToken returns the raw token from the Authorization header, or ""
// when the scheme marker is absent or differs in case.
func BearerToken(c *fiber.Ctx) string {
	header := c.Get(fiber.HeaderAuthorization)
	if !strings.HasPrefix(header, bearerPrefix) {
		return ""
	}
	return header[len(bearerPrefix):]
}

// PrincipalFromContext retrieves the authenticated caller, if any.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}
