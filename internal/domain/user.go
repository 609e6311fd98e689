package domain

import "time"

// User is the domain model for sales personnel accounts.
type User struct {
	ID             string
	FullName       string
	Email          string
	PasswordHash   string
	PhoneNumber    string
	Role           Role
	CallTarget     int
	MonthlyTarget  int
	TeamAllocation string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
