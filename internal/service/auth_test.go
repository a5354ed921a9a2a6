package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthEnv(t *testing.T) (*testEnv, *AuthService) {
	t.Helper()
	env := newTestEnv(t)
	return env, NewAuthService(env.userRepo, "test-jwt-secret", 30*time.Minute)
}

func TestAuth_RegisterAndAuthenticate(t *testing.T) {
	_, auth := newAuthEnv(t)
	ctx := context.Background()

	user, err := auth.Register(ctx, RegisterInput{
		Email:     "alice@example.com",
		Password:  "correct horse",
		FirstName: "Alice",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)
	assert.NotEqual(t, "correct horse", user.PasswordHash)

	got, err := auth.Authenticate(ctx, "alice@example.com", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
}

func TestAuth_AuthenticateFailuresAreUniform(t *testing.T) {
	_, auth := newAuthEnv(t)
	ctx := context.Background()

	_, err := auth.Register(ctx, RegisterInput{Email: "alice@example.com", Password: "correct horse"})
	require.NoError(t, err)

	// Wrong password and unknown email are indistinguishable.
	_, errWrongPass := auth.Authenticate(ctx, "alice@example.com", "wrong")
	_, errNoUser := auth.Authenticate(ctx, "nobody@example.com", "wrong")
	assert.ErrorIs(t, errWrongPass, ErrInvalidCredentials)
	assert.ErrorIs(t, errNoUser, ErrInvalidCredentials)
}

func TestAuth_RegisterRequiresEmailAndPassword(t *testing.T) {
	_, auth := newAuthEnv(t)

	_, err := auth.Register(context.Background(), RegisterInput{Email: "a@b.c"})
	assert.Error(t, err)
	_, err = auth.Register(context.Background(), RegisterInput{Password: "p"})
	assert.Error(t, err)
}

func TestAuth_TokenRoundTrip(t *testing.T) {
	env, auth := newAuthEnv(t)
	user := env.createUser(t, "alice@example.com")

	token, err := auth.IssueToken(user)
	require.NoError(t, err)

	userID, err := auth.VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, userID)
}

func TestAuth_TamperedTokenRejected(t *testing.T) {
	env, auth := newAuthEnv(t)
	user := env.createUser(t, "alice@example.com")

	token, err := auth.IssueToken(user)
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	tampered := parts[0] + "." + parts[1] + ".AAAA" + parts[2][4:]

	_, err = auth.VerifyToken(tampered)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = auth.VerifyToken("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuth_TokenFromOtherSecretRejected(t *testing.T) {
	env, auth := newAuthEnv(t)
	other := NewAuthService(env.userRepo, "different-secret", 30*time.Minute)
	user := env.createUser(t, "alice@example.com")

	token, err := other.IssueToken(user)
	require.NoError(t, err)

	_, err = auth.VerifyToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuth_ResetPassword(t *testing.T) {
	_, auth := newAuthEnv(t)
	ctx := context.Background()

	_, err := auth.Register(ctx, RegisterInput{Email: "alice@example.com", Password: "old pass"})
	require.NoError(t, err)

	require.NoError(t, auth.ResetPassword(ctx, "alice@example.com", "new pass"))

	_, err = auth.Authenticate(ctx, "alice@example.com", "old pass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = auth.Authenticate(ctx, "alice@example.com", "new pass")
	assert.NoError(t, err)

	assert.Error(t, auth.ResetPassword(ctx, "nobody@example.com", "x"))
}
