package identity

import (
	"context"
	"maps"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/spec-kit/dinewithus/internal/domain"
)

// CachedProvider reuses GetUser results for a short time so that every request does not
// round-trip to the provider. Metadata updates and sign-outs through this wrapper evict
// the token's entry; other tokens of the same user may serve stale metadata until the
// TTL elapses, which is why access decisions read the local mirror instead.
type CachedProvider struct {
	Provider
	users *expirable.LRU[string, domain.IdentityUser]
}

// NewCachedProvider wraps p. A non-positive size or ttl disables caching.
func NewCachedProvider(p Provider, size int, ttl time.Duration) Provider {
	if size <= 0 || ttl <= 0 {
		return p
	}
	return &CachedProvider{
		Provider: p,
		users:    expirable.NewLRU[string, domain.IdentityUser](size, nil, ttl),
	}
}

func (c *CachedProvider) GetUser(ctx context.Context, accessToken string) (*domain.IdentityUser, error) {
	key := domain.Fingerprint(accessToken)
	if user, ok := c.users.Get(key); ok {
		return cloneUser(user), nil
	}
	user, err := c.Provider.GetUser(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	c.users.Add(key, *cloneUser(*user))
	return user, nil
}

func (c *CachedProvider) UpdateUserMetadata(ctx context.Context, accessToken string, data map[string]any) (*domain.IdentityUser, error) {
	key := domain.Fingerprint(accessToken)
	c.users.Remove(key)
	user, err := c.Provider.UpdateUserMetadata(ctx, accessToken, data)
	if err != nil {
		return nil, err
	}
	c.users.Add(key, *cloneUser(*user))
	return user, nil
}

func (c *CachedProvider) SignOut(ctx context.Context, accessToken string) error {
	c.users.Remove(domain.Fingerprint(accessToken))
	return c.Provider.SignOut(ctx, accessToken)
}

func cloneUser(u domain.IdentityUser) *domain.IdentityUser {
	u.Metadata = maps.Clone(u.Metadata)
	return &u
}
