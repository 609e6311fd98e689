package dto

import (
	"time"

	"github.com/spec-kit/sales-erp-service/internal/domain"
)

// UserResponse is the external projection of a user. The password hash is
// never serialized.
type UserResponse struct {
	ID             string    `json:"id"`
	FullName       string    `json:"full_name"`
	Email          string    `json:"email"`
	PhoneNumber    string    `json:"phone_number,omitempty"`
	Role           string    `json:"role"`
	CallTarget     int       `json:"call_target"`
	MonthlyTarget  int       `json:"monthly_target"`
	TeamAllocation string    `json:"team_allocation,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// NewUserResponse maps the domain model.
func NewUserResponse(user *domain.User) UserResponse {
	return UserResponse{
		ID:             user.ID,
		FullName:       user.FullName,
		Email:          user.Email,
		PhoneNumber:    user.PhoneNumber,
		Role:           string(user.Role),
		CallTarget:     user.CallTarget,
		MonthlyTarget:  user.MonthlyTarget,
		TeamAllocation: user.TeamAllocation,
		CreatedAt:      user.CreatedAt,
	}
}

// UserUpdateRequest payload for partial employee updates.
type UserUpdateRequest struct {
	FullName       *string `json:"full_name"`
	PhoneNumber    *string `json:"phone_number"`
	CallTarget     *int    `json:"call_target"`
	MonthlyTarget  *int    `json:"monthly_target"`
	TeamAllocation *string `json:"team_allocation"`
	Role           *string `json:"role"`
}
