package auth

import (
	"errors"
	"fmt"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/spec-kit/sales-erp-service/internal/domain"
)

// Token errors. Malformed and signature failures are distinguished from
// expiry so callers can log them separately; clients see the same generic
// unauthorized response for all three.
var (
	ErrMalformedToken    = errors.New("malformed token")
	ErrSignatureMismatch = errors.New("token signature mismatch")
	ErrTokenExpired      = errors.New("token expired")
)

// Claims describes the JWT payload. Access tokens carry the role and
// profile claims; refresh tokens carry registered claims only.
type Claims struct {
	UserID         string      `json:"userId,omitempty"`
	FullName       string      `json:"fullName,omitempty"`
	Role           domain.Role `json:"role,omitempty"`
	TeamAllocation string      `json:"teamAllocation,omitempty"`
	jwt.RegisteredClaims
}

// TokenManager issues and verifies HS256 signed JWTs. The signing key is
// derived once from the configured secret and never changes for the
// process lifetime, so the manager is safe for concurrent use.
type TokenManager struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewTokenManager builds a manager from the configured secret and TTLs.
func NewTokenManager(secret string, accessTTL, refreshTTL time.Duration) *TokenManager {
	if accessTTL <= 0 {
		accessTTL = 24 * time.Hour
	}
	if refreshTTL <= 0 {
		refreshTTL = 7 * 24 * time.Hour
	}
	return &TokenManager{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

// Issue builds and signs an access token for the user. The subject is the
// user's email; role and profile claims reflect the user at issuance time.
func (tm *TokenManager) Issue(user *domain.User) (string, time.Time, error) {
	now := tm.now()
	expiresAt := now.Add(tm.accessTTL)
	claims := &Claims{
		UserID:         user.ID,
		FullName:       user.FullName,
		Role:           user.Role,
		TeamAllocation: user.TeamAllocation,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.Email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	return tm.sign(claims, expiresAt)
}

// IssueRefresh builds a long-lived refresh token. It deliberately omits the
// role claim: a leaked refresh token can only be exchanged for new tokens,
// never presented for role-gated access.
func (tm *TokenManager) IssueRefresh(user *domain.User) (string, time.Time, error) {
	now := tm.now()
	expiresAt := now.Add(tm.refreshTTL)
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.Email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	return tm.sign(claims, expiresAt)
}

func (tm *TokenManager) sign(claims *Claims, expiresAt time.Time) (string, time.Time, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(tm.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Decode parses and signature-checks the token without evaluating expiry.
// An expired but correctly signed token is still decodable; Verify layers
// the expiry check on top so forged and expired tokens stay distinct.
func (tm *TokenManager) Decode(tokenStr string) (*Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	parsed, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return tm.secret, nil
	})
	if err != nil {
		return nil, classifyParseError(err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok {
		return nil, ErrMalformedToken
	}
	if claims.Subject == "" || claims.ExpiresAt == nil {
		return nil, fmt.Errorf("%w: missing required claim", ErrMalformedToken)
	}
	return claims, nil
}

// Verify decodes the token and enforces expiry at verification time.
// A token expiring at exactly now is already expired.
func (tm *TokenManager) Verify(tokenStr string) (*Claims, error) {
	claims, err := tm.Decode(tokenStr)
	if err != nil {
		return nil, err
	}
	if !claims.ExpiresAt.Time.After(tm.now()) {
		return nil, ErrTokenExpired
	}
	return claims, nil
}

// ExtractSubject returns the subject of a verified token.
func (tm *TokenManager) ExtractSubject(tokenStr string) (string, error) {
	claims, err := tm.Verify(tokenStr)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

// ExtractRole returns the role claim of a verified token. Refresh tokens
// carry no role claim and yield an empty role.
func (tm *TokenManager) ExtractRole(tokenStr string) (domain.Role, error) {
	claims, err := tm.Verify(tokenStr)
	if err != nil {
		return "", err
	}
	return claims.Role, nil
}

// ExtractClaim looks up an arbitrary claim by name on a verified token.
// The second return reports whether the claim is present.
func (tm *TokenManager) ExtractClaim(tokenStr, name string) (any, bool, error) {
	if _, err := tm.Verify(tokenStr); err != nil {
		return nil, false, err
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	mapClaims := jwt.MapClaims{}
	if _, err := parser.ParseWithClaims(tokenStr, mapClaims, func(token *jwt.Token) (interface{}, error) {
		return tm.secret, nil
	}); err != nil {
		return nil, false, classifyParseError(err)
	}
	value, ok := mapClaims[name]
	return value, ok, nil
}

// IsValidFor reports whether the token is well-formed, unexpired and bound
// to the expected subject. The request gate uses this to tie a token to a
// freshly looked-up principal.
func (tm *TokenManager) IsValidFor(tokenStr, expectedSubject string) bool {
	claims, err := tm.Verify(tokenStr)
	if err != nil {
		return false
	}
	return claims.Subject == expectedSubject
}

// AccessTokenTTL exposes the configured access token lifetime.
func (tm *TokenManager) AccessTokenTTL() time.Duration {
	return tm.accessTTL
}

func classifyParseError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return fmt.Errorf("%w: %v", ErrSignatureMismatch, err)
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %v", ErrMalformedToken, err)
	default:
		return fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
}
