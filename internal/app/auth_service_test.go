package app

import (
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/yourusername/yuna-go/internal/domain"
)

func newTestAuth(t *testing.T, password string) *AuthService {
	t.Helper()
	auth, err := NewAuthService(domain.AuthConfig{
		Username: "admin",
		Password: password,
		Secret:   "test-secret",
		TokenTTL: time.Hour,
	})
	require.NoError(t, err)
	return auth
}

func TestAuthService_LoginAndVerify(t *testing.T) {
	auth := newTestAuth(t, "hunter2")

	token, err := auth.Login("admin", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, "bearer", token.TokenType)
	assert.Equal(t, int64(3600), token.ExpiresIn)

	user, err := auth.Verify(token.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "admin", user)
}

func TestAuthService_RejectsBadCredentials(t *testing.T) {
	auth := newTestAuth(t, "hunter2")

	_, err := auth.Login("admin", "wrong")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	_, err = auth.Login("root", "hunter2")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestAuthService_BcryptPassword(t *testing.T) {
	hashed, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	require.NoError(t, err)
	auth := newTestAuth(t, string(hashed))

	_, err = auth.Login("admin", "hunter2")
	assert.NoError(t, err)
	_, err = auth.Login("admin", string(hashed))
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestAuthService_VerifyRejects(t *testing.T) {
	auth := newTestAuth(t, "hunter2")

	// expired
	auth.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	old, err := auth.Login("admin", "hunter2")
	require.NoError(t, err)
	auth.now = time.Now
	_, err = auth.Verify(old.AccessToken)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	// signed with another secret
	other := newTestAuth(t, "hunter2")
	other.secret = []byte("another-secret")
	forged, err := other.Login("admin", "hunter2")
	require.NoError(t, err)
	_, err = auth.Verify(forged.AccessToken)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	// unsigned
	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.StandardClaims{Subject: "admin", Issuer: tokenIssuer}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = auth.Verify(none)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = auth.Verify("not-a-token")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestNewAuthService_GeneratesSecret(t *testing.T) {
	a, err := NewAuthService(domain.AuthConfig{Username: "admin", Password: "x", TokenTTL: time.Minute})
	require.NoError(t, err)
	b, err := NewAuthService(domain.AuthConfig{Username: "admin", Password: "x", TokenTTL: time.Minute})
	require.NoError(t, err)
	assert.Len(t, a.secret, 64)
	assert.NotEqual(t, a.secret, b.secret)
}
