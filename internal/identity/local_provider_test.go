package identity

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/dinewithus/internal/auth"
	"github.com/spec-kit/dinewithus/internal/domain"
)

type codeInbox map[string]string

func newTestProvider(t *testing.T) (*LocalProvider, codeInbox) {
	t.Helper()
	inbox := codeInbox{}
	p := NewLocalProvider(LocalProviderOptions{
		Tokens:     auth.NewTokenManager("test-secret", time.Hour),
		BcryptCost: bcrypt.MinCost,
		Sender: func(_ context.Context, email, code string, _ time.Time) error {
			inbox[email] = code
			return nil
		},
	})
	return p, inbox
}

func signIn(t *testing.T, p *LocalProvider, inbox codeInbox, email string) *domain.Session {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, p.SendOneTimeCode(ctx, email))
	session, err := p.VerifyOneTimeCode(ctx, email, inbox[email])
	require.NoError(t, err)
	return session
}

func TestLocalProvider_OneTimeCodeSignIn(t *testing.T) {
	ctx := context.Background()
	p, inbox := newTestProvider(t)

	session := signIn(t, p, inbox, "Ana@Example.com ")
	assert.Equal(t, "ana@example.com", session.User.Email)
	assert.NotEmpty(t, session.AccessToken)
	assert.NotEmpty(t, session.RefreshToken)

	user, err := p.GetUser(ctx, session.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, session.User.ID, user.ID)
	assert.Equal(t, domain.Role(""), user.MetadataRole())

	_, err = p.VerifyOneTimeCode(ctx, "ana@example.com", inbox["ana@example.com"])
	assert.ErrorIs(t, err, domain.ErrInvalidCredential, "codes are single use")
}

func TestLocalProvider_SameEmailKeepsIdentity(t *testing.T) {
	p, inbox := newTestProvider(t)

	first := signIn(t, p, inbox, "ana@example.com")
	second := signIn(t, p, inbox, "ana@example.com")
	assert.Equal(t, first.User.ID, second.User.ID)
}

func TestLocalProvider_WrongCodeAttemptsExhaustCode(t *testing.T) {
	ctx := context.Background()
	p, inbox := newTestProvider(t)
	require.NoError(t, p.SendOneTimeCode(ctx, "ana@example.com"))

	wrong := "000000"
	if inbox["ana@example.com"] == wrong {
		wrong = "111111"
	}
	for i := 0; i < maxCodeAttempts; i++ {
		_, err := p.VerifyOneTimeCode(ctx, "ana@example.com", wrong)
		assert.ErrorIs(t, err, domain.ErrInvalidCredential)
	}

	_, err := p.VerifyOneTimeCode(ctx, "ana@example.com", inbox["ana@example.com"])
	assert.ErrorIs(t, err, domain.ErrInvalidCredential)
}

func TestLocalProvider_ExpiredCode(t *testing.T) {
	ctx := context.Background()
	p, inbox := newTestProvider(t)
	require.NoError(t, p.SendOneTimeCode(ctx, "ana@example.com"))

	p.now = func() time.Time { return time.Now().Add(time.Hour) }
	_, err := p.VerifyOneTimeCode(ctx, "ana@example.com", inbox["ana@example.com"])
	assert.ErrorIs(t, err, domain.ErrInvalidCredential)
}

func TestLocalProvider_RoleClaimVisibleAfterRefresh(t *testing.T) {
	ctx := context.Background()
	p, inbox := newTestProvider(t)
	session := signIn(t, p, inbox, "ana@example.com")

	_, err := p.UpdateUserMetadata(ctx, session.AccessToken, map[string]any{"role": "host"})
	require.NoError(t, err)

	stale, err := auth.ClaimsFromToken(session.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, domain.Role(""), stale.IdentityUser().MetadataRole(), "old token keeps old claims")

	user, err := p.GetUser(ctx, session.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleHost, user.MetadataRole(), "provider record is current")

	refreshed, err := p.Refresh(ctx, session.RefreshToken)
	require.NoError(t, err)
	claims, err := auth.ClaimsFromToken(refreshed.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleHost, claims.IdentityUser().MetadataRole())

	_, err = p.Refresh(ctx, session.RefreshToken)
	assert.ErrorIs(t, err, domain.ErrInvalidCredential, "refresh tokens rotate")
}

func TestLocalProvider_SignOutRevokes(t *testing.T) {
	ctx := context.Background()
	p, inbox := newTestProvider(t)
	session := signIn(t, p, inbox, "ana@example.com")

	require.NoError(t, p.SignOut(ctx, session.AccessToken))

	_, err := p.GetUser(ctx, session.AccessToken)
	assert.ErrorIs(t, err, domain.ErrInvalidCredential)
	_, err = p.Refresh(ctx, session.RefreshToken)
	assert.ErrorIs(t, err, domain.ErrInvalidCredential)
}

func TestLocalProvider_RejectsForeignTokens(t *testing.T) {
	p, _ := newTestProvider(t)
	other := auth.NewTokenManager("other-secret", time.Hour)
	token, _, err := other.GenerateToken(domain.IdentityUser{ID: "x", Email: "x@example.com"})
	require.NoError(t, err)

	_, err = p.GetUser(context.Background(), token)
	assert.ErrorIs(t, err, domain.ErrInvalidCredential)
}
