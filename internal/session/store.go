// Package session bridges the identity provider's credential lifecycle to an
// application-level principal on the client side.
package session

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/dinewithus/internal/access"
	"github.com/spec-kit/dinewithus/internal/auth"
	"github.com/spec-kit/dinewithus/internal/domain"
)

// Status is the store's position in the session lifecycle.
type Status string

const (
	StatusLoading         Status = "loading"
	StatusUnauthenticated Status = "unauthenticated"
	StatusNoRole          Status = "authenticated-no-role"
	StatusWithRole        Status = "authenticated-with-role"
)

// State is an immutable snapshot of the store.
type State struct {
	Status    Status
	Session   *domain.Session
	Principal *domain.Principal
	// Degraded marks a principal derived from token claims because the profile endpoint
	// could not be reached. Such a principal is display-only.
	Degraded bool
}

// Loading reports whether the initial credential load is still running.
func (s State) Loading() bool { return s.Status == StatusLoading }

// Authenticated reports whether a credential is held.
func (s State) Authenticated() bool {
	return s.Status == StatusNoRole || s.Status == StatusWithRole
}

// Role is the principal's effective role, empty while none is usable.
func (s State) Role() domain.Role { return s.Principal.EffectiveRole() }

// SessionSource is the client side of the identity provider.
type SessionSource interface {
	CurrentSession(ctx context.Context) (*domain.Session, error)
	Refresh(ctx context.Context) (*domain.Session, error)
	SignOut(ctx context.Context) error
}

// ProfileFetcher reads the mirror record through the internal API.
type ProfileFetcher interface {
	CurrentUser(ctx context.Context, accessToken string) (*domain.Principal, error)
}

// Store holds the current session and principal. All methods are safe for concurrent use;
// listeners are called outside the lock.
type Store struct {
	source   SessionSource
	profiles ProfileFetcher
	logger   *zap.Logger

	mu        sync.Mutex
	state     State
	listeners map[int]func(State)
	nextID    int
	// generation advances on every clear. A profile resolution started under an older
	// generation is discarded so it cannot resurrect a signed-out session.
	generation uint64
}

// NewStore returns a store in the loading state.
func NewStore(source SessionSource, profiles ProfileFetcher, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		source:    source,
		profiles:  profiles,
		logger:    logger,
		state:     State{Status: StatusLoading},
		listeners: make(map[int]func(State)),
	}
}

// State returns the current snapshot.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Subscribe registers fn for every state change and returns its cancel function.
func (s *Store) Subscribe(fn func(State)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

// LoadSession asks the provider for an existing credential and resolves its profile.
// Without one the store settles as unauthenticated.
func (s *Store) LoadSession(ctx context.Context) (*domain.Session, error) {
	current, err := s.source.CurrentSession(ctx)
	if err != nil {
		s.logger.Warn("load session failed", zap.Error(err))
		s.clear()
		return nil, err
	}
	if current == nil {
		s.clear()
		return nil, nil
	}
	if _, err := s.ResolveProfile(ctx, current); err != nil {
		return nil, err
	}
	return current, nil
}

// OnCredentialChange applies a provider session notification.
func (s *Store) OnCredentialChange(ctx context.Context, event domain.AuthEvent, current *domain.Session) error {
	if event == domain.AuthEventSignedOut || current == nil {
		s.clear()
		return nil
	}
	_, err := s.ResolveProfile(ctx, current)
	return err
}

// ResolveProfile fetches the mirror record for current. When the profile endpoint fails
// for any reason other than a rejected credential, the principal is derived from the
// token's own claims and marked degraded.
func (s *Store) ResolveProfile(ctx context.Context, current *domain.Session) (*domain.Principal, error) {
	gen := s.currentGeneration()
	principal, err := s.profiles.CurrentUser(ctx, current.AccessToken)
	switch {
	case err == nil:
		s.applyAt(gen, State{Status: statusFor(principal), Session: current, Principal: principal})
		return principal, nil
	case errors.Is(err, domain.ErrInvalidCredential):
		s.logger.Warn("credential rejected by profile endpoint", zap.String("email", current.User.Email))
		s.clear()
		return nil, err
	default:
		s.logger.Warn("profile fetch failed; using token claims", zap.String("email", current.User.Email), zap.Error(err))
		principal = principalFromClaims(current)
		s.applyAt(gen, State{Status: statusFor(principal), Session: current, Principal: principal, Degraded: true})
		return principal, nil
	}
}

// Refresh replaces the credential so that claims written since it was issued become
// visible, then resolves the profile again.
func (s *Store) Refresh(ctx context.Context) (*domain.Session, error) {
	refreshed, err := s.source.Refresh(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.OnCredentialChange(ctx, domain.AuthEventTokenRefreshed, refreshed); err != nil {
		return nil, err
	}
	return refreshed, nil
}

// SignOut revokes the provider session and clears local state. The state is cleared even
// when revocation fails.
func (s *Store) SignOut(ctx context.Context) (ViewDirective, error) {
	err := s.source.SignOut(ctx)
	if err != nil {
		s.logger.Warn("provider sign-out failed", zap.Error(err))
	}
	s.clear()
	return ViewDirective{Navigate: access.HomePath}, err
}

func (s *Store) clear() {
	s.mu.Lock()
	s.generation++
	s.publishLocked(State{Status: StatusUnauthenticated})
}

func (s *Store) currentGeneration() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// applyAt applies next only if no clear happened since gen was read.
func (s *Store) applyAt(gen uint64, next State) {
	s.mu.Lock()
	if s.generation != gen {
		s.mu.Unlock()
		s.logger.Debug("discarding profile resolved for a cleared session")
		return
	}
	s.publishLocked(next)
}

// publishLocked stores next, releases the lock and notifies listeners.
func (s *Store) publishLocked(next State) {
	s.state = next
	listeners := make([]func(State), 0, len(s.listeners))
	for id := 0; id < s.nextID; id++ {
		if fn, ok := s.listeners[id]; ok {
			listeners = append(listeners, fn)
		}
	}
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(next)
	}
}

func statusFor(p *domain.Principal) Status {
	if p.RequiresRoleSelection() {
		return StatusNoRole
	}
	return StatusWithRole
}

func principalFromClaims(current *domain.Session) *domain.Principal {
	user := current.User
	if claims, err := auth.ClaimsFromToken(current.AccessToken); err == nil {
		user = claims.IdentityUser()
	}
	if user.Email == "" {
		user.Email = current.User.Email
	}
	role := user.MetadataRole()
	return &domain.Principal{
		ID:                 user.ID,
		Email:              user.Email,
		Name:               user.DisplayName(),
		Role:               role,
		NeedsRoleSelection: !role.Valid(),
	}
}
