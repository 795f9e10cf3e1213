// Package identity talks to the identity provider that owns sign-in, sessions and user
// metadata. The service never stores credentials itself.
package identity

import (
	"context"
	"maps"
	"time"

	"github.com/spec-kit/dinewithus/internal/domain"
)

// Provider is the subset of identity provider operations the service and its clients use.
// Invalid tokens and codes are reported as domain.ErrInvalidCredential; transport
// failures wrap domain.ErrProviderUnavailable. Other refusals are plain errors.
type Provider interface {
	GetUser(ctx context.Context, accessToken string) (*domain.IdentityUser, error)
	// UpdateUserMetadata merges data into the user's metadata. Tokens issued before the
	// update keep the old metadata until the session is refreshed.
	UpdateUserMetadata(ctx context.Context, accessToken string, data map[string]any) (*domain.IdentityUser, error)
	SendOneTimeCode(ctx context.Context, email string) error
	VerifyOneTimeCode(ctx context.Context, email, code string) (*domain.Session, error)
	Refresh(ctx context.Context, refreshToken string) (*domain.Session, error)
	SignOut(ctx context.Context, accessToken string) error
}

// UserPayload is the provider's JSON representation of a user.
type UserPayload struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata"`
}

// SessionPayload is the provider's JSON representation of a session.
type SessionPayload struct {
	AccessToken  string      `json:"access_token"`
	TokenType    string      `json:"token_type"`
	RefreshToken string      `json:"refresh_token"`
	ExpiresIn    int64       `json:"expires_in"`
	ExpiresAt    int64       `json:"expires_at"`
	User         UserPayload `json:"user"`
}

// NewUserPayload converts a domain user for the wire.
func NewUserPayload(u domain.IdentityUser) UserPayload {
	metadata := maps.Clone(u.Metadata)
	if metadata == nil {
		metadata = map[string]any{}
	}
	return UserPayload{ID: u.ID, Email: u.Email, UserMetadata: metadata}
}

// IdentityUser converts the wire user back.
func (p UserPayload) IdentityUser() domain.IdentityUser {
	return domain.IdentityUser{ID: p.ID, Email: p.Email, Metadata: maps.Clone(p.UserMetadata)}
}

// NewSessionPayload converts a domain session for the wire.
func NewSessionPayload(s *domain.Session, now time.Time) SessionPayload {
	return SessionPayload{
		AccessToken:  s.AccessToken,
		TokenType:    "bearer",
		RefreshToken: s.RefreshToken,
		ExpiresIn:    int64(s.ExpiresAt.Sub(now).Seconds()),
		ExpiresAt:    s.ExpiresAt.Unix(),
		User:         NewUserPayload(s.User),
	}
}

// Session converts the wire session back.
func (p SessionPayload) Session() *domain.Session {
	var expiresAt time.Time
	if p.ExpiresAt > 0 {
		expiresAt = time.Unix(p.ExpiresAt, 0)
	}
	return &domain.Session{
		AccessToken:  p.AccessToken,
		RefreshToken: p.RefreshToken,
		ExpiresAt:    expiresAt,
		User:         p.User.IdentityUser(),
	}
}
