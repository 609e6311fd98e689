package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/sales-erp-service/internal/domain"
	"github.com/spec-kit/sales-erp-service/internal/events"
	"github.com/spec-kit/sales-erp-service/internal/repository"
	apperrors "github.com/spec-kit/sales-erp-service/pkg/util"
)

// UserService covers the administrative principal operations: listing,
// profile updates and deletion. Role gating happens at the router; these
// methods assume an already-authorized caller.
type UserService struct {
	users      repository.UserRepository
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NewUserService constructs the service.
func NewUserService(users repository.UserRepository, dispatcher events.Dispatcher, logger *zap.Logger) *UserService {
	return &UserService{users: users, dispatcher: dispatcher, logger: logger}
}

// UpdateEmployeeInput carries the mutable profile fields. Nil means "leave
// unchanged".
type UpdateEmployeeInput struct {
	FullName       *string
	PhoneNumber    *string
	CallTarget     *int
	MonthlyTarget  *int
	TeamAllocation *string
	Role           *domain.Role
}

// ListUsers returns every principal.
func (s *UserService) ListUsers(ctx context.Context) ([]domain.User, error) {
	users, err := s.users.List(ctx, nil)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return users, nil
}

// ListEmployees returns principals with the EMPLOYEE role.
func (s *UserService) ListEmployees(ctx context.Context) ([]domain.User, error) {
	role := domain.RoleEmployee
	users, err := s.users.List(ctx, &role)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return users, nil
}

// CountUsers returns the total number of principals.
func (s *UserService) CountUsers(ctx context.Context) (int64, error) {
	count, err := s.users.Count(ctx)
	if err != nil {
		return 0, apperrors.MapError(err)
	}
	return count, nil
}

// UpdateEmployee applies a partial profile update.
func (s *UserService) UpdateEmployee(ctx context.Context, actor string, id string, input UpdateEmployeeInput) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	if input.FullName != nil {
		user.FullName = *input.FullName
	}
	if input.PhoneNumber != nil {
		user.PhoneNumber = *input.PhoneNumber
	}
	if input.CallTarget != nil {
		user.CallTarget = *input.CallTarget
	}
	if input.MonthlyTarget != nil {
		user.MonthlyTarget = *input.MonthlyTarget
	}
	if input.TeamAllocation != nil {
		user.TeamAllocation = *input.TeamAllocation
	}
	if input.Role != nil {
		if !input.Role.Valid() {
			return nil, apperrors.NewValidationError("unknown role", map[string]any{"role": string(*input.Role)})
		}
		user.Role = *input.Role
	}

	if err := s.users.Update(ctx, user); err != nil {
		return nil, apperrors.MapError(err)
	}

	s.publish(ctx, events.EventUserUpdated, user.Email, actor, nil)
	return user, nil
}

// DeleteEmployee removes a principal. Tokens already issued for the account
// stay decodable until expiry but no longer bind to a principal, so the
// gate leaves them unauthenticated.
func (s *UserService) DeleteEmployee(ctx context.Context, actor string, id string) error {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return apperrors.MapError(err)
	}
	if err := s.users.Delete(ctx, id); err != nil {
		return apperrors.MapError(err)
	}

	s.publish(ctx, events.EventUserDeleted, user.Email, actor,
		events.UserDeletedPayload{UserID: id})
	return nil
}

func (s *UserService) publish(ctx context.Context, eventType events.EventType, subject, actor string, payload interface{}) {
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
