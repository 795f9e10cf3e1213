package repository

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const syncPendingTTL = 7 * 24 * time.Hour

// SyncStatusRepository remembers principals whose last role change did not reach the
// external backend. The marker is advisory; the mirror stays authoritative.
type SyncStatusRepository struct {
	client *redis.Client
	prefix string
}

// NewSyncStatusRepository stores markers under "<prefix>:sync:pending:<email>".
func NewSyncStatusRepository(client *redis.Client, prefix string) *SyncStatusRepository {
	return &SyncStatusRepository{client: client, prefix: prefix}
}

func (r *SyncStatusRepository) key(email string) string {
	return r.prefix + ":sync:pending:" + email
}

// MarkPending records the role that still has to reach the backend.
func (r *SyncStatusRepository) MarkPending(ctx context.Context, email, role string) error {
	return r.client.Set(ctx, r.key(email), role, syncPendingTTL).Err()
}

// Clear removes the marker after a fully successful sync.
func (r *SyncStatusRepository) Clear(ctx context.Context, email string) error {
	return r.client.Del(ctx, r.key(email)).Err()
}

// Pending reports whether a marker exists.
func (r *SyncStatusRepository) Pending(ctx context.Context, email string) (bool, error) {
	n, err := r.client.Exists(ctx, r.key(email)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
