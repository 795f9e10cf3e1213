package auth

import (
	"errors"
	"maps"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/spec-kit/dinewithus/internal/domain"
)

// TokenManager issues and validates HS256 access tokens shaped like the identity
// provider's: subject is the user id, user metadata travels as a claim.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenManager builds a new manager.
func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &TokenManager{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Claims describes the JWT payload.
type Claims struct {
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata,omitempty"`
	jwt.RegisteredClaims
}

// IdentityUser returns the user described by the claims. The metadata is a snapshot taken
// when the token was issued and may lag behind the provider.
func (c *Claims) IdentityUser() domain.IdentityUser {
	return domain.IdentityUser{
		ID:       c.Subject,
		Email:    c.Email,
		Metadata: maps.Clone(c.UserMetadata),
	}
}

// GenerateToken builds and signs a token for the user's current metadata.
func (tm *TokenManager) GenerateToken(user domain.IdentityUser) (string, time.Time, error) {
	issuedAt := tm.now()
	expiresAt := issuedAt.Add(tm.ttl)
	claims := &Claims{
		Email:        user.Email,
		UserMetadata: maps.Clone(user.Metadata),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(tm.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expiresAt, nil
}

// ParseToken validates and returns claims.
func (tm *TokenManager) ParseToken(tokenStr string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return tm.secret, nil
	}, jwt.WithTimeFunc(tm.now))
	if err != nil {
		return nil, err
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

// ClaimsFromToken decodes claims without verifying the signature. Clients use it to read
// their own token when the profile endpoint is unreachable; servers must not.
func ClaimsFromToken(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenStr, claims); err != nil {
		return nil, err
	}
	return claims, nil
}
