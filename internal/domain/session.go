package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"
)

// MetadataRoleKey is the user-metadata key that carries the role claim.
const MetadataRoleKey = "role"

var (
	// ErrInvalidCredential is returned when a token or one-time code is missing, expired,
	// revoked or otherwise rejected.
	ErrInvalidCredential = errors.New("invalid credential")
	// ErrProviderUnavailable is returned when the identity provider cannot be reached.
	ErrProviderUnavailable = errors.New("identity provider unavailable")
)

// IdentityUser is the identity provider's view of a user.
type IdentityUser struct {
	ID       string
	Email    string
	Metadata map[string]any
}

// MetadataRole returns the role stored in user metadata, if recognized.
func (u IdentityUser) MetadataRole() Role {
	raw, _ := u.Metadata[MetadataRoleKey].(string)
	role, ok := ParseRole(raw)
	if !ok {
		return ""
	}
	return role
}

// DisplayName falls back to the local part of the email address.
func (u IdentityUser) DisplayName() string {
	if name, _ := u.Metadata["name"].(string); strings.TrimSpace(name) != "" {
		return name
	}
	local, _, _ := strings.Cut(u.Email, "@")
	return local
}

// Session is a bound credential issued by the identity provider. Sessions are replaced on
// refresh, never mutated.
type Session struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	User         IdentityUser
}

// Expired reports whether the access token is past its expiry.
func (s *Session) Expired(now time.Time) bool {
	return s == nil || (!s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt))
}

// AuthEvent enumerates identity provider session change notifications.
type AuthEvent string

const (
	AuthEventSignedIn       AuthEvent = "SIGNED_IN"
	AuthEventSignedOut      AuthEvent = "SIGNED_OUT"
	AuthEventTokenRefreshed AuthEvent = "TOKEN_REFRESHED"
	AuthEventUserUpdated    AuthEvent = "USER_UPDATED"
)

// Fingerprint identifies a bearer token in caches and revocation lists without storing it.
func Fingerprint(accessToken string) string {
	sum := sha256.Sum256([]byte(accessToken))
	return hex.EncodeToString(sum[:])
}
