package repository

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/dinewithus/internal/domain"
)

const defaultRevocationTTL = time.Hour

// RevocationRepository lists access tokens signed out before their expiry.
type RevocationRepository struct {
	client *redis.Client
	prefix string
}

// NewRevocationRepository stores entries under "<prefix>:revoked:<fingerprint>".
func NewRevocationRepository(client *redis.Client, prefix string) *RevocationRepository {
	return &RevocationRepository{client: client, prefix: prefix}
}

func (r *RevocationRepository) key(accessToken string) string {
	return r.prefix + ":revoked:" + domain.Fingerprint(accessToken)
}

// Revoke rejects accessToken until ttl elapses; ttl should be the token's remaining life.
func (r *RevocationRepository) Revoke(ctx context.Context, accessToken string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = defaultRevocationTTL
	}
	return r.client.Set(ctx, r.key(accessToken), "1", ttl).Err()
}

// IsRevoked reports whether accessToken was revoked.
func (r *RevocationRepository) IsRevoked(ctx context.Context, accessToken string) (bool, error) {
	n, err := r.client.Exists(ctx, r.key(accessToken)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
