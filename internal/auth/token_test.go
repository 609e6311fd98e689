package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/sales-erp-service/internal/domain"
)

const testSecret = "test-secret-key-for-jwt-signing"

func testUser() *domain.User {
	return &domain.User{
		ID:             "7d4f2f1a-1111-4222-8333-944444444444",
		FullName:       "System Administrator",
		Email:          "admin@saleserp.com",
		Role:           domain.RoleAdmin,
		TeamAllocation: "Administration",
	}
}

// newFrozenManager returns a manager whose clock is pinned to a fixed
// instant, advanced by reassigning tm.now.
func newFrozenManager(accessTTL, refreshTTL time.Duration) (*TokenManager, time.Time) {
	tm := NewTokenManager(testSecret, accessTTL, refreshTTL)
	start := time.Unix(1700000000, 0)
	tm.now = func() time.Time { return start }
	return tm, start
}

func TestIssueVerifyRoundTrip(t *testing.T) {
	tm, start := newFrozenManager(24*time.Hour, 7*24*time.Hour)
	user := testUser()

	token, expiresAt, err := tm.Issue(user)
	require.NoError(t, err)
	assert.Equal(t, start.Add(24*time.Hour), expiresAt)

	claims, err := tm.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, user.Email, claims.Subject)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, user.FullName, claims.FullName)
	assert.Equal(t, domain.RoleAdmin, claims.Role)
	assert.Equal(t, "Administration", claims.TeamAllocation)
	assert.Equal(t, start.Unix(), claims.IssuedAt.Unix())
	assert.Equal(t, expiresAt.Unix(), claims.ExpiresAt.Unix())
}

func TestVerifySignatureTamper(t *testing.T) {
	tm, _ := newFrozenManager(time.Hour, 24*time.Hour)
	token, _, err := tm.Issue(testUser())
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)

	const b64url = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"

	sig := []byte(parts[2])
	for i := range sig {
		tampered := make([]byte, len(sig))
		copy(tampered, sig)
		// Flip the high bit of the 6-bit group so the decoded signature
		// always changes, even in the partially-used final character.
		idx := strings.IndexByte(b64url, sig[i])
		require.GreaterOrEqual(t, idx, 0)
		tampered[i] = b64url[(idx+32)%64]
		forged := parts[0] + "." + parts[1] + "." + string(tampered)

		_, err := tm.Verify(forged)
		require.ErrorIs(t, err, ErrSignatureMismatch, "flipped signature byte %d", i)
	}
}

func TestVerifyClaimTamperInvalidatesSignature(t *testing.T) {
	tm, _ := newFrozenManager(time.Hour, 24*time.Hour)
	token, _, err := tm.Issue(testUser())
	require.NoError(t, err)

	other := &domain.User{Email: "intruder@saleserp.com", Role: domain.RoleAdmin}
	otherToken, _, err := tm.Issue(other)
	require.NoError(t, err)

	// Splice the intruder's payload onto the original signature.
	origParts := strings.Split(token, ".")
	otherParts := strings.Split(otherToken, ".")
	spliced := origParts[0] + "." + otherParts[1] + "." + origParts[2]

	_, err = tm.Verify(spliced)
	assert.ErrorIs(t, err, ErrSignatureMismatch)
}

func TestDecodeMalformed(t *testing.T) {
	tm, _ := newFrozenManager(time.Hour, 24*time.Hour)

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not-a-jwt-token"},
		{"two segments", "aGVhZGVy.Y2xhaW1z"},
		{"non-base64 segments", "header.payload.signature"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tm.Decode(tt.token)
			assert.ErrorIs(t, err, ErrMalformedToken)
		})
	}
}

func TestVerifyWrongKey(t *testing.T) {
	tm, _ := newFrozenManager(time.Hour, 24*time.Hour)
	otherManager := NewTokenManager("a-completely-different-secret", time.Hour, 24*time.Hour)

	token, _, err := otherManager.Issue(testUser())
	require.NoError(t, err)

	_, err = tm.Verify(token)
	assert.ErrorIs(t, err, ErrSignatureMismatch)
}

func TestVerifyExpiryBoundary(t *testing.T) {
	tm, start := newFrozenManager(24*time.Hour, 7*24*time.Hour)
	token, expiresAt, err := tm.Issue(testUser())
	require.NoError(t, err)

	// Just inside the lifetime.
	tm.now = func() time.Time { return expiresAt.Add(-time.Millisecond) }
	_, err = tm.Verify(token)
	assert.NoError(t, err)

	// Exactly at expiry counts as expired.
	tm.now = func() time.Time { return expiresAt }
	_, err = tm.Verify(token)
	assert.ErrorIs(t, err, ErrTokenExpired)

	// Scenario from the field: a 25 hour old token with a 24 hour TTL.
	tm.now = func() time.Time { return start.Add(25 * time.Hour) }
	_, err = tm.Verify(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestDecodeIgnoresExpiry(t *testing.T) {
	tm, start := newFrozenManager(time.Hour, 24*time.Hour)
	token, _, err := tm.Issue(testUser())
	require.NoError(t, err)

	tm.now = func() time.Time { return start.Add(48 * time.Hour) }

	claims, err := tm.Decode(token)
	require.NoError(t, err)
	assert.Equal(t, "admin@saleserp.com", claims.Subject)

	_, err = tm.Verify(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestVerifyIdempotent(t *testing.T) {
	tm, _ := newFrozenManager(time.Hour, 24*time.Hour)
	token, _, err := tm.Issue(testUser())
	require.NoError(t, err)

	first, err := tm.Verify(token)
	require.NoError(t, err)
	second, err := tm.Verify(token)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestIsValidForSubjectBinding(t *testing.T) {
	tm, _ := newFrozenManager(time.Hour, 24*time.Hour)
	user := &domain.User{Email: "a@x.com", Role: domain.RoleEmployee}
	token, _, err := tm.Issue(user)
	require.NoError(t, err)

	assert.True(t, tm.IsValidFor(token, "a@x.com"))
	assert.False(t, tm.IsValidFor(token, "b@x.com"))
	assert.False(t, tm.IsValidFor("garbage", "a@x.com"))
}

func TestIsValidForExpired(t *testing.T) {
	tm, start := newFrozenManager(time.Hour, 24*time.Hour)
	token, _, err := tm.Issue(testUser())
	require.NoError(t, err)

	tm.now = func() time.Time { return start.Add(2 * time.Hour) }
	assert.False(t, tm.IsValidFor(token, "admin@saleserp.com"))
}

func TestIssueRefreshOmitsRole(t *testing.T) {
	tm, start := newFrozenManager(time.Hour, 24*time.Hour)
	token, expiresAt, err := tm.IssueRefresh(testUser())
	require.NoError(t, err)

	assert.Equal(t, start.Add(24*time.Hour), expiresAt)

	claims, err := tm.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "admin@saleserp.com", claims.Subject)
	assert.Empty(t, claims.Role)
	assert.Empty(t, claims.UserID)

	role, err := tm.ExtractRole(token)
	require.NoError(t, err)
	assert.Empty(t, role)
}

func TestExtractSubjectAndRole(t *testing.T) {
	tm, _ := newFrozenManager(time.Hour, 24*time.Hour)
	token, _, err := tm.Issue(testUser())
	require.NoError(t, err)

	subject, err := tm.ExtractSubject(token)
	require.NoError(t, err)
	assert.Equal(t, "admin@saleserp.com", subject)

	role, err := tm.ExtractRole(token)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, role)
}

func TestExtractClaim(t *testing.T) {
	tm, _ := newFrozenManager(time.Hour, 24*time.Hour)
	token, _, err := tm.Issue(testUser())
	require.NoError(t, err)

	value, ok, err := tm.ExtractClaim(token, "teamAllocation")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Administration", value)

	_, ok, err = tm.ExtractClaim(token, "no_such_claim")
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = tm.ExtractClaim("garbage", "role")
	assert.ErrorIs(t, err, ErrMalformedToken)
}
