package dto

import "time"

// LoginRequest payload for login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterRequest payload for administrative registration.
type RegisterRequest struct {
	FullName       string `json:"full_name"`
	Email          string `json:"email"`
	Password       string `json:"password"`
	PhoneNumber    string `json:"phone_number"`
	Role           string `json:"role"`
	CallTarget     int    `json:"call_target"`
	MonthlyTarget  int    `json:"monthly_target"`
	TeamAllocation string `json:"team_allocation"`
}

// RefreshRequest payload for token refresh.
type RefreshRequest struct {
	Token string `json:"token"`
}

// AuthResponse standard response for auth endpoints.
type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// TokenPairResponse carries a refreshed access/refresh pair.
type TokenPairResponse struct {
	AccessToken      string    `json:"access_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshToken     string    `json:"refresh_token"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}
