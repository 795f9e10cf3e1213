package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/dinewithus/internal/access"
	"github.com/spec-kit/dinewithus/internal/auth"
	"github.com/spec-kit/dinewithus/internal/domain"
)

type fakeSource struct {
	current    *domain.Session
	currentErr error
	refreshed  *domain.Session
	signOutErr error
	signedOut  bool
}

func (f *fakeSource) CurrentSession(context.Context) (*domain.Session, error) {
	return f.current, f.currentErr
}

func (f *fakeSource) Refresh(context.Context) (*domain.Session, error) {
	if f.refreshed == nil {
		return nil, domain.ErrInvalidCredential
	}
	f.current = f.refreshed
	return f.refreshed, nil
}

func (f *fakeSource) SignOut(context.Context) error {
	f.signedOut = true
	f.current = nil
	return f.signOutErr
}

type fakeProfiles struct {
	byToken map[string]*domain.Principal
	err     error
	calls   int
}

func (f *fakeProfiles) CurrentUser(_ context.Context, token string) (*domain.Principal, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	p, ok := f.byToken[token]
	if !ok {
		return nil, domain.ErrInvalidCredential
	}
	copied := *p
	return &copied, nil
}

func tokenFor(t *testing.T, metadata map[string]any) string {
	t.Helper()
	token, _, err := auth.NewTokenManager("secret", time.Hour).GenerateToken(domain.IdentityUser{
		ID:       "u-1",
		Email:    "ana@example.com",
		Metadata: metadata,
	})
	require.NoError(t, err)
	return token
}

func sessionWith(token string) *domain.Session {
	return &domain.Session{
		AccessToken:  token,
		RefreshToken: "refresh",
		ExpiresAt:    time.Now().Add(time.Hour),
		User:         domain.IdentityUser{ID: "u-1", Email: "ana@example.com"},
	}
}

func TestStore_StartsLoading(t *testing.T) {
	store := NewStore(&fakeSource{}, &fakeProfiles{}, nil)
	assert.True(t, store.State().Loading())
	assert.False(t, store.State().Authenticated())
}

func TestStore_LoadSessionWithoutCredential(t *testing.T) {
	profiles := &fakeProfiles{}
	store := NewStore(&fakeSource{}, profiles, nil)

	current, err := store.LoadSession(context.Background())
	require.NoError(t, err)

	assert.Nil(t, current)
	assert.Equal(t, StatusUnauthenticated, store.State().Status)
	assert.Zero(t, profiles.calls)
}

func TestStore_LoadSessionResolvesRole(t *testing.T) {
	token := tokenFor(t, nil)
	profiles := &fakeProfiles{byToken: map[string]*domain.Principal{
		token: {ID: "u-1", Email: "ana@example.com", Role: domain.RoleGuest},
	}}
	store := NewStore(&fakeSource{current: sessionWith(token)}, profiles, nil)

	_, err := store.LoadSession(context.Background())
	require.NoError(t, err)

	state := store.State()
	assert.Equal(t, StatusWithRole, state.Status)
	assert.Equal(t, domain.RoleGuest, state.Role())
	assert.False(t, state.Degraded)
	assert.True(t, Directive(state, "/dinners").None())
}

func TestStore_NoRoleForcesRoleSelection(t *testing.T) {
	token := tokenFor(t, nil)
	profiles := &fakeProfiles{byToken: map[string]*domain.Principal{
		token: {ID: "u-1", Email: "ana@example.com", NeedsRoleSelection: true},
	}}
	store := NewStore(&fakeSource{current: sessionWith(token)}, profiles, nil)

	_, err := store.LoadSession(context.Background())
	require.NoError(t, err)

	state := store.State()
	assert.Equal(t, StatusNoRole, state.Status)
	assert.Equal(t, access.RoleSelectionPath, Directive(state, "/dinners/42").Navigate)
	assert.True(t, Directive(state, access.RoleSelectionPath).None())
}

func TestStore_ProfileFailureFallsBackToClaims(t *testing.T) {
	token := tokenFor(t, map[string]any{"role": "host", "name": "Ana"})
	store := NewStore(&fakeSource{current: sessionWith(token)}, &fakeProfiles{err: errors.New("503 service unavailable")}, nil)

	_, err := store.LoadSession(context.Background())
	require.NoError(t, err)

	state := store.State()
	assert.True(t, state.Degraded)
	assert.Equal(t, StatusWithRole, state.Status)
	assert.Equal(t, domain.RoleHost, state.Role())
	assert.Equal(t, "Ana", state.Principal.Name)
}

func TestStore_DegradedWithoutRoleClaimIsNotRedirected(t *testing.T) {
	token := tokenFor(t, nil)
	store := NewStore(&fakeSource{current: sessionWith(token)}, &fakeProfiles{err: errors.New("timeout")}, nil)

	_, err := store.LoadSession(context.Background())
	require.NoError(t, err)

	state := store.State()
	assert.Equal(t, StatusNoRole, state.Status)
	assert.Equal(t, "ana", state.Principal.Name)
	assert.True(t, Directive(state, "/").None())
}

func TestStore_RejectedCredentialUnauthenticates(t *testing.T) {
	store := NewStore(&fakeSource{current: sessionWith("stale")}, &fakeProfiles{}, nil)

	_, err := store.LoadSession(context.Background())

	assert.ErrorIs(t, err, domain.ErrInvalidCredential)
	assert.Equal(t, StatusUnauthenticated, store.State().Status)
}

func TestStore_RoleAppearsAfterRefresh(t *testing.T) {
	before := tokenFor(t, nil)
	after := tokenFor(t, map[string]any{"role": "host"})
	profiles := &fakeProfiles{byToken: map[string]*domain.Principal{
		before: {ID: "u-1", Email: "ana@example.com", NeedsRoleSelection: true},
	}}
	source := &fakeSource{current: sessionWith(before), refreshed: sessionWith(after)}
	store := NewStore(source, profiles, nil)

	_, err := store.LoadSession(context.Background())
	require.NoError(t, err)
	require.Equal(t, StatusNoRole, store.State().Status)

	// the role selection has landed in the mirror by the time the client refreshes
	profiles.byToken[after] = &domain.Principal{ID: "u-1", Email: "ana@example.com", Role: domain.RoleHost}
	_, err = store.Refresh(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StatusWithRole, store.State().Status)
	assert.Equal(t, after, store.State().Session.AccessToken)
}

func TestStore_SignOutClearsAndGoesHome(t *testing.T) {
	token := tokenFor(t, nil)
	source := &fakeSource{current: sessionWith(token), signOutErr: errors.New("network")}
	profiles := &fakeProfiles{byToken: map[string]*domain.Principal{
		token: {ID: "u-1", Email: "ana@example.com", Role: domain.RoleGuest},
	}}
	store := NewStore(source, profiles, nil)
	_, err := store.LoadSession(context.Background())
	require.NoError(t, err)

	directive, err := store.SignOut(context.Background())

	assert.Error(t, err)
	assert.True(t, source.signedOut)
	assert.Equal(t, access.HomePath, directive.Navigate)
	assert.Equal(t, StatusUnauthenticated, store.State().Status)
	assert.Nil(t, store.State().Principal)
}

func TestStore_OnCredentialChangeSignedOut(t *testing.T) {
	token := tokenFor(t, nil)
	profiles := &fakeProfiles{byToken: map[string]*domain.Principal{
		token: {ID: "u-1", Email: "ana@example.com", Role: domain.RoleHost},
	}}
	store := NewStore(&fakeSource{}, profiles, nil)

	var seen []Status
	cancel := store.Subscribe(func(s State) { seen = append(seen, s.Status) })

	require.NoError(t, store.OnCredentialChange(context.Background(), domain.AuthEventSignedIn, sessionWith(token)))
	require.NoError(t, store.OnCredentialChange(context.Background(), domain.AuthEventSignedOut, nil))
	cancel()
	require.NoError(t, store.OnCredentialChange(context.Background(), domain.AuthEventSignedIn, sessionWith(token)))

	assert.Equal(t, []Status{StatusWithRole, StatusUnauthenticated}, seen)
}

type blockingProfiles struct {
	principal *domain.Principal
	started   chan struct{}
	release   chan struct{}
}

func (b *blockingProfiles) CurrentUser(context.Context, string) (*domain.Principal, error) {
	close(b.started)
	<-b.release
	return b.principal, nil
}

func TestStore_SignOutWinsOverInFlightProfile(t *testing.T) {
	profiles := &blockingProfiles{
		principal: &domain.Principal{Email: "ana@example.com", Role: domain.RoleHost},
		started:   make(chan struct{}),
		release:   make(chan struct{}),
	}
	source := &fakeSource{current: sessionWith(tokenFor(t, nil))}
	store := NewStore(source, profiles, nil)

	resolved := make(chan struct{})
	go func() {
		defer close(resolved)
		_, _ = store.LoadSession(context.Background())
	}()
	<-profiles.started

	_, err := store.SignOut(context.Background())
	require.NoError(t, err)
	close(profiles.release)
	<-resolved

	state := store.State()
	assert.Equal(t, StatusUnauthenticated, state.Status)
	assert.Nil(t, state.Principal)
}
