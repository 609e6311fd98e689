package auth

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/sales-erp-service/internal/domain"
	"github.com/spec-kit/sales-erp-service/internal/observability"
	apperrors "github.com/spec-kit/sales-erp-service/pkg/util"
)

// fakeUserStore is an in-memory UserRepository keyed by email.
type fakeUserStore struct {
	users map[string]*domain.User
}

func newFakeUserStore(users ...*domain.User) *fakeUserStore {
	store := &fakeUserStore{users: make(map[string]*domain.User)}
	for _, user := range users {
		store.users[user.Email] = user
	}
	return store
}

func (s *fakeUserStore) Create(_ context.Context, user *domain.User) error {
	if user.ID == "" {
		user.ID = "id-" + user.Email
	}
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	s.users[user.Email] = user
	return nil
}

func (s *fakeUserStore) Update(_ context.Context, user *domain.User) error {
	if _, ok := s.users[user.Email]; !ok {
		return pgx.ErrNoRows
	}
	s.users[user.Email] = user
	return nil
}

func (s *fakeUserStore) Delete(_ context.Context, id string) error {
	for email, user := range s.users {
		if user.ID == id {
			delete(s.users, email)
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (s *fakeUserStore) GetByID(_ context.Context, id string) (*domain.User, error) {
	for _, user := range s.users {
		if user.ID == id {
			return user, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (s *fakeUserStore) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	user, ok := s.users[email]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return user, nil
}

func (s *fakeUserStore) ExistsByEmail(_ context.Context, email string) (bool, error) {
	_, ok := s.users[email]
	return ok, nil
}

func (s *fakeUserStore) List(_ context.Context, role *domain.Role) ([]domain.User, error) {
	var users []domain.User
	for _, user := range s.users {
		if role == nil || user.Role == *role {
			users = append(users, *user)
		}
	}
	return users, nil
}

func (s *fakeUserStore) Count(_ context.Context) (int64, error) {
	return int64(len(s.users)), nil
}

var testPublicPaths = []string{"/api/v1/auth/login", "/health"}

func newGateApp(tm *TokenManager, store *fakeUserStore) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			domainErr := apperrors.ToDomainError(err)
			return c.Status(domainErr.HTTPStatus).JSON(fiber.Map{
				"error": fiber.Map{"code": domainErr.Code, "message": domainErr.Message},
			})
		},
	})

	gate := NewMiddleware(tm, store, testPublicPaths, zap.NewNop(), observability.NewMetrics())
	app.Use(gate.Handle)

	app.Post("/api/v1/auth/login", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/profile", RequireAuthenticated(), func(c *fiber.Ctx) error {
		principal, _ := PrincipalFromContext(c)
		return c.JSON(fiber.Map{"email": principal.User.Email, "role": principal.Role})
	})
	app.Get("/admin", RequireRole(domain.RoleAdmin), func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "admin ok"})
	})
	return app
}

func doRequest(t *testing.T, app *fiber.App, method, path, bearer string) (int, string) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if bearer != "" {
		req.Header.Set("Authorization", bearer)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func errorCode(t *testing.T, body string) string {
	t.Helper()
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &payload))
	return payload.Error.Code
}

func TestGatePublicPathWithoutHeader(t *testing.T) {
	tm, _ := newFrozenManager(time.Hour, 24*time.Hour)
	app := newGateApp(tm, newFakeUserStore())

	status, _ := doRequest(t, app, http.MethodPost, "/api/v1/auth/login", "")
	assert.Equal(t, http.StatusOK, status)
}

func TestGateMissingHeaderLeavesAnonymous(t *testing.T) {
	tm, _ := newFrozenManager(time.Hour, 24*time.Hour)
	app := newGateApp(tm, newFakeUserStore())

	status, body := doRequest(t, app, http.MethodGet, "/profile", "")
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "NOT_AUTHENTICATED", errorCode(t, body))
}

func TestGateSchemeMarkerIsCaseSensitive(t *testing.T) {
	tm, _ := newFrozenManager(time.Hour, 24*time.Hour)
	user := testUser()
	app := newGateApp(tm, newFakeUserStore(user))

	token, _, err := tm.Issue(user)
	require.NoError(t, err)

	for _, header := range []string{
		"bearer " + token,
		"BEARER " + token,
		"Token " + token,
		token,
	} {
		status, body := doRequest(t, app, http.MethodGet, "/profile", header)
		assert.Equal(t, http.StatusUnauthorized, status, "header %q", header)
		assert.Equal(t, "NOT_AUTHENTICATED", errorCode(t, body))
	}
}

func TestGateValidTokenAuthenticates(t *testing.T) {
	tm, _ := newFrozenManager(time.Hour, 24*time.Hour)
	user := testUser()
	app := newGateApp(tm, newFakeUserStore(user))

	token, _, err := tm.Issue(user)
	require.NoError(t, err)

	status, body := doRequest(t, app, http.MethodGet, "/profile", "Bearer "+token)
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, user.Email)

	status, _ = doRequest(t, app, http.MethodGet, "/admin", "Bearer "+token)
	assert.Equal(t, http.StatusOK, status)
}

func TestGateExpiredTokenLeavesAnonymous(t *testing.T) {
	tm, start := newFrozenManager(24*time.Hour, 7*24*time.Hour)
	user := testUser()
	app := newGateApp(tm, newFakeUserStore(user))

	token, _, err := tm.Issue(user)
	require.NoError(t, err)

	// Token issued 25 hours ago with a 24 hour TTL.
	tm.now = func() time.Time { return start.Add(25 * time.Hour) }

	status, body := doRequest(t, app, http.MethodGet, "/admin", "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "NOT_AUTHENTICATED", errorCode(t, body))
}

func TestGateGarbageTokenLeavesAnonymous(t *testing.T) {
	tm, _ := newFrozenManager(time.Hour, 24*time.Hour)
	app := newGateApp(tm, newFakeUserStore(testUser()))

	status, body := doRequest(t, app, http.MethodGet, "/profile", "Bearer not-a-token")
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "NOT_AUTHENTICATED", errorCode(t, body))
}

func TestGateUnknownSubjectLeavesAnonymous(t *testing.T) {
	tm, _ := newFrozenManager(time.Hour, 24*time.Hour)
	// Token issued for a principal that was deleted afterwards.
	token, _, err := tm.Issue(testUser())
	require.NoError(t, err)

	app := newGateApp(tm, newFakeUserStore())

	status, body := doRequest(t, app, http.MethodGet, "/profile", "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "NOT_AUTHENTICATED", errorCode(t, body))
}

func TestGateRefreshTokenNotAccepted(t *testing.T) {
	tm, _ := newFrozenManager(time.Hour, 24*time.Hour)
	user := testUser()
	app := newGateApp(tm, newFakeUserStore(user))

	refresh, _, err := tm.IssueRefresh(user)
	require.NoError(t, err)

	status, body := doRequest(t, app, http.MethodGet, "/profile", "Bearer "+refresh)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "NOT_AUTHENTICATED", errorCode(t, body))
}

func TestGateRoleResolvedFromStore(t *testing.T) {
	tm, _ := newFrozenManager(time.Hour, 24*time.Hour)
	user := testUser()
	user.Role = domain.RoleEmployee
	app := newGateApp(tm, newFakeUserStore(user))

	// Token minted while the user was still an employee.
	token, _, err := tm.Issue(user)
	require.NoError(t, err)

	status, body := doRequest(t, app, http.MethodGet, "/admin", "Bearer "+token)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "INSUFFICIENT_ROLE", errorCode(t, body))

	// Promotion takes effect on the next request despite the stale claim.
	user.Role = domain.RoleAdmin
	status, _ = doRequest(t, app, http.MethodGet, "/admin", "Bearer "+token)
	assert.Equal(t, http.StatusOK, status)
}

func TestRequireRoleExactMatch(t *testing.T) {
	tm, _ := newFrozenManager(time.Hour, 24*time.Hour)
	employee := &domain.User{
		ID:    "emp-1",
		Email: "employee@saleserp.com",
		Role:  domain.RoleEmployee,
	}
	app := newGateApp(tm, newFakeUserStore(employee))

	token, _, err := tm.Issue(employee)
	require.NoError(t, err)

	// Authenticated but wrong role: 403, not 401.
	status, body := doRequest(t, app, http.MethodGet, "/admin", "Bearer "+token)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "INSUFFICIENT_ROLE", errorCode(t, body))

	status, _ = doRequest(t, app, http.MethodGet, "/profile", "Bearer "+token)
	assert.Equal(t, http.StatusOK, status)
}
