package client

import (
	"context"
	"errors"
	"time"

	"github.com/spec-kit/dinewithus/internal/domain"
	"github.com/spec-kit/dinewithus/internal/identity"
)

// IdentitySession is the session source of a command line front end: the identity
// provider for sign-in and refresh, a file for persistence.
type IdentitySession struct {
	provider identity.Provider
	store    *FileSessionStore
	signOut  func(ctx context.Context, accessToken string) error
	now      func() time.Time
}

// NewIdentitySession builds a session source. signOut ends the session remotely; nil
// uses the provider's own sign-out.
func NewIdentitySession(provider identity.Provider, store *FileSessionStore, signOut func(ctx context.Context, accessToken string) error) *IdentitySession {
	if signOut == nil {
		signOut = provider.SignOut
	}
	return &IdentitySession{provider: provider, store: store, signOut: signOut, now: time.Now}
}

// SendCode starts a passwordless sign-in.
func (s *IdentitySession) SendCode(ctx context.Context, email string) error {
	return s.provider.SendOneTimeCode(ctx, email)
}

// Verify completes the sign-in and persists the session.
func (s *IdentitySession) Verify(ctx context.Context, email, code string) (*domain.Session, error) {
	session, err := s.provider.VerifyOneTimeCode(ctx, email, code)
	if err != nil {
		return nil, err
	}
	if err := s.store.Save(session); err != nil {
		return nil, err
	}
	return session, nil
}

// CurrentSession returns the saved session, refreshing it once it has expired. A session
// the provider no longer accepts is forgotten.
func (s *IdentitySession) CurrentSession(ctx context.Context) (*domain.Session, error) {
	session, err := s.store.Load()
	if err != nil || session == nil {
		return nil, err
	}
	if !session.Expired(s.now()) {
		return session, nil
	}
	refreshed, err := s.Refresh(ctx)
	if errors.Is(err, domain.ErrInvalidCredential) {
		return nil, nil
	}
	return refreshed, err
}

// Refresh exchanges the saved refresh token for a new session.
func (s *IdentitySession) Refresh(ctx context.Context) (*domain.Session, error) {
	session, err := s.store.Load()
	if err != nil {
		return nil, err
	}
	if session == nil || session.RefreshToken == "" {
		return nil, domain.ErrInvalidCredential
	}
	refreshed, err := s.provider.Refresh(ctx, session.RefreshToken)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredential) {
			_ = s.store.Clear()
		}
		return nil, err
	}
	if err := s.store.Save(refreshed); err != nil {
		return nil, err
	}
	return refreshed, nil
}

// SignOut ends the session remotely and forgets it locally; the local copy is removed
// even when the remote call fails.
func (s *IdentitySession) SignOut(ctx context.Context) error {
	session, err := s.store.Load()
	if err != nil || session == nil {
		_ = s.store.Clear()
		return err
	}
	remoteErr := s.signOut(ctx, session.AccessToken)
	if err := s.store.Clear(); err != nil {
		return err
	}
	return remoteErr
}
