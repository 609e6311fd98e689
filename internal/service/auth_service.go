package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/sales-erp-service/internal/auth"
	"github.com/spec-kit/sales-erp-service/internal/config"
	"github.com/spec-kit/sales-erp-service/internal/domain"
	"github.com/spec-kit/sales-erp-service/internal/events"
	"github.com/spec-kit/sales-erp-service/internal/repository"
	apperrors "github.com/spec-kit/sales-erp-service/pkg/util"
)

// AuthService coordinates login, registration and token refresh flows.
type AuthService struct {
	users      repository.UserRepository
	hasher     *auth.PasswordHasher
	tokenMgr   *auth.TokenManager
	limiter    LoginLimiter
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// AuthDependencies encapsulates collaborator requirements for the service.
type AuthDependencies struct {
	UserRepo   repository.UserRepository
	Limiter    LoginLimiter
	Dispatcher events.Dispatcher
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config, deps AuthDependencies, logger *zap.Logger) *AuthService {
	return &AuthService{
		users:      deps.UserRepo,
		hasher:     auth.NewPasswordHasher(cfg.Auth.BcryptCost),
		tokenMgr:   auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL(), cfg.Auth.RefreshTokenTTL()),
		limiter:    deps.Limiter,
		dispatcher: deps.Dispatcher,
		logger:     logger,
	}
}

// RegisterInput carries the fields of a registration request. Role is
// optional; registration is an administrative operation, so an empty role
// falls back to EMPLOYEE rather than being rejected.
type RegisterInput struct {
	FullName       string
	Email          string
	Password       string
	PhoneNumber    string
	Role           domain.Role
	CallTarget     int
	MonthlyTarget  int
	TeamAllocation string
}

// Login authenticates a user and issues an access token. Unknown
// identifiers and wrong passwords are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.User, string, time.Time, error) {
	throttled, err := s.limiterTooMany(ctx, email)
	if err != nil {
		s.logger.Warn("login throttle check failed", zap.Error(err))
	} else if throttled {
		return nil, "", time.Time{}, apperrors.NewTooManyAttempts()
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			s.recordLoginFailure(ctx, email, "unknown_identifier")
			return nil, "", time.Time{}, apperrors.NewInvalidCredentials()
		}
		return nil, "", time.Time{}, apperrors.MapError(err)
	}

	if !s.hasher.Matches(password, user.PasswordHash) {
		s.recordLoginFailure(ctx, email, "password_mismatch")
		return nil, "", time.Time{}, apperrors.NewInvalidCredentials()
	}

	token, expiresAt, err := s.tokenMgr.Issue(user)
	if err != nil {
		return nil, "", time.Time{}, apperrors.MapError(err)
	}

	if s.limiter != nil {
		if err := s.limiter.Reset(ctx, email); err != nil {
			s.logger.Warn("login throttle reset failed", zap.Error(err))
		}
	}
	s.publish(ctx, events.EventLoginSucceeded, email, email, nil)

	return user, token, expiresAt, nil
}

// Register creates a new account. It never issues a token: the new user
// logs in separately, so account creation and token issuance are not
// coupled transactionally.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*domain.User, error) {
	if input.Email == "" || input.Password == "" || input.FullName == "" {
		return nil, apperrors.NewValidationError("full name, email and password required", nil)
	}

	role := input.Role
	if role == "" {
		role = domain.RoleEmployee
	}
	if !role.Valid() {
		return nil, apperrors.NewValidationError("unknown role", map[string]any{"role": string(role)})
	}

	exists, err := s.users.ExistsByEmail(ctx, input.Email)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if exists {
		return nil, apperrors.NewDuplicateIdentity(input.Email)
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	user := &domain.User{
		FullName:       input.FullName,
		Email:          input.Email,
		PasswordHash:   hash,
		PhoneNumber:    input.PhoneNumber,
		Role:           role,
		CallTarget:     input.CallTarget,
		MonthlyTarget:  input.MonthlyTarget,
		TeamAllocation: input.TeamAllocation,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, apperrors.MapError(err)
	}

	s.publish(ctx, events.EventUserRegistered, user.Email, "",
		events.UserRegisteredPayload{Role: string(role)})

	return user, nil
}

// TokenPair bundles a freshly issued access and refresh token.
type TokenPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// Refresh exchanges any valid unexpired token for a fresh access/refresh
// pair. The user is re-loaded from the store so the new access token
// carries the current role, not the one embedded in the old token.
func (s *AuthService) Refresh(ctx context.Context, presented string) (*domain.User, *TokenPair, error) {
	claims, err := s.tokenMgr.Verify(presented)
	if err != nil {
		s.logger.Debug("refresh rejected", zap.Error(err))
		return nil, nil, apperrors.NewUnauthorized("invalid token")
	}

	user, err := s.users.GetByEmail(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, apperrors.NewUnauthorized("invalid token")
		}
		return nil, nil, apperrors.MapError(err)
	}

	access, accessExp, err := s.tokenMgr.Issue(user)
	if err != nil {
		return nil, nil, apperrors.MapError(err)
	}
	refresh, refreshExp, err := s.tokenMgr.IssueRefresh(user)
	if err != nil {
		return nil, nil, apperrors.MapError(err)
	}

	s.publish(ctx, events.EventTokenRefreshed, user.Email, user.Email, nil)

	return user, &TokenPair{
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

func (s *AuthService) limiterTooMany(ctx context.Context, email string) (bool, error) {
	if s.limiter == nil {
		return false, nil
	}
	return s.limiter.TooManyAttempts(ctx, email)
}

func (s *AuthService) recordLoginFailure(ctx context.Context, email, reason string) {
	if s.limiter != nil {
		if err := s.limiter.RecordFailure(ctx, email); err != nil {
			s.logger.Warn("login throttle record failed", zap.Error(err))
		}
	}
	s.publish(ctx, events.EventLoginFailed, email, "", events.LoginFailedPayload{Reason: reason})
}

func (s *AuthService) publish(ctx context.Context, eventType events.EventType, subject, actor string, payload interface{}) {
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Subject:   subject,
		Actor:     actor,
		Timestamp: time.Now(),
		Payload:   payload,
	})
}
