package repository

import (
	"context"
	"sync"
	"time"

	"github.com/spec-kit/dinewithus/internal/domain"
)

// MemoryUserRepository keeps the mirror in process. It backs development runs without
// POSTGRES_DSN and handler tests.
type MemoryUserRepository struct {
	mu      sync.RWMutex
	byEmail map[string]domain.Principal
	now     func() time.Time
}

// NewMemoryUserRepository returns an empty in-memory mirror.
func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{byEmail: make(map[string]domain.Principal), now: time.Now}
}

func (r *MemoryUserRepository) GetByEmail(_ context.Context, email string) (*domain.Principal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	principal, ok := r.byEmail[email]
	if !ok {
		return nil, ErrNotFound
	}
	return &principal, nil
}

func (r *MemoryUserRepository) CreateIfAbsent(_ context.Context, principal *domain.Principal) (*domain.Principal, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.byEmail[principal.Email]; ok {
		return &existing, false, nil
	}
	stored := *principal
	stored.CreatedAt = r.now()
	stored.UpdatedAt = stored.CreatedAt
	r.byEmail[stored.Email] = stored
	return &stored, true, nil
}

func (r *MemoryUserRepository) UpsertRole(_ context.Context, params UpsertRoleParams) (*domain.Principal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	stored, ok := r.byEmail[params.Email]
	if !ok {
		stored = domain.Principal{ID: params.ID, Email: params.Email, Name: params.Name, CreatedAt: now}
	}
	stored.Role = params.Role
	stored.NeedsRoleSelection = false
	stored.UpdatedAt = now
	r.byEmail[params.Email] = stored
	return &stored, nil
}

func (r *MemoryUserRepository) Ping(context.Context) error {
	return nil
}
