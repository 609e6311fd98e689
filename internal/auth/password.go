package auth

import "golang.org/x/crypto/bcrypt"

// PasswordHasher wraps bcrypt with a configured cost.
type PasswordHasher struct {
	cost int
}

// NewPasswordHasher builds a hasher; an out-of-range cost falls back to
// the bcrypt default.
func NewPasswordHasher(cost int) *PasswordHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &PasswordHasher{cost: cost}
}

// Hash hashes a plaintext password.
func (h *PasswordHasher) Hash(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// Matches verifies a password against its stored hash. bcrypt's comparison
// is not timing-sensitive string equality.
func (h *PasswordHasher) Matches(password, hashed string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(password)) == nil
}
