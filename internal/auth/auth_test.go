package auth

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newProvider(t *testing.T, now time.Time) *JWTProvider {
	t.Helper()
	p, err := NewJWTProvider("test-secret", "labfunds")
	require.NoError(t, err)
	p.now = func() time.Time { return now }
	return p
}

func TestIssueAndAuthenticate(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	p := newProvider(t, now)

	tok, err := p.Issue(Identity{Email: "pi@lab.example", Role: RoleAccountant}, time.Hour)
	require.NoError(t, err)

	id, err := p.Authenticate(context.Background(), tok)
	require.NoError(t, err)
	assert.Equal(t, Identity{Email: "pi@lab.example", Role: RoleAccountant}, id)
	assert.True(t, id.CanWrite())
	assert.False(t, Identity{Role: RoleViewer}.CanWrite())
}

func TestAuthenticateRejects(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	p := newProvider(t, now)

	expired, err := p.Issue(Identity{Email: "a@b", Role: RoleAdmin}, -time.Minute)
	require.NoError(t, err)

	other, err := NewJWTProvider("other-secret", "labfunds")
	require.NoError(t, err)
	other.now = p.now
	forged, err := other.Issue(Identity{Email: "a@b", Role: RoleAdmin}, time.Hour)
	require.NoError(t, err)

	_, err = p.Issue(Identity{Email: "a@b", Role: "root"}, time.Hour)
	require.Error(t, err)
	badRole, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Email: "a@b",
		Role:  "root",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "labfunds",
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{Email: "a@b", Role: RoleAdmin}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	for name, tok := range map[string]string{
		"expired":  expired,
		"forged":   forged,
		"bad role": badRole,
		"alg none": none,
		"garbage":  "not-a-token",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := p.Authenticate(context.Background(), tok)
			assert.ErrorIs(t, err, ErrUnauthenticated)
		})
	}
}

func TestNewJWTProviderNeedsSecret(t *testing.T) {
	_, err := NewJWTProvider("", "")
	assert.Error(t, err)
}

func TestBearerToken(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	_, ok := BearerToken(r)
	assert.False(t, ok)

	r.Header.Set("Authorization", "bearer abc")
	tok, ok := BearerToken(r)
	assert.True(t, ok)
	assert.Equal(t, "abc", tok)

	r.Header.Set("Authorization", "Basic abc")
	_, ok = BearerToken(r)
	assert.False(t, ok)
}

func TestContext(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)
	ctx := NewContext(context.Background(), Identity{Email: "x", Role: RoleViewer})
	id, ok := FromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, "x", id.Email)
}
