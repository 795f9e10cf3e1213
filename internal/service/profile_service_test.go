package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/dinewithus/internal/domain"
	"github.com/spec-kit/dinewithus/internal/events"
	"github.com/spec-kit/dinewithus/internal/repository"
	apperrors "github.com/spec-kit/dinewithus/pkg/util/errorutil"
)

func newProfileService(users repository.UserRepository, sync SyncStatusReader) (*ProfileService, *[]events.Event) {
	var published []events.Event
	dispatcher := events.NewInMemoryDispatcher()
	dispatcher.Subscribe(events.EventPrincipalCreated, func(_ context.Context, e events.Event) error {
		published = append(published, e)
		return nil
	})
	return NewProfileService(ProfileDependencies{
		Users:      users,
		SyncStatus: sync,
		Dispatcher: dispatcher,
		Logger:     zap.NewNop(),
	}), &published
}

func TestCurrentUser_CreatesRecordWithoutRole(t *testing.T) {
	svc, published := newProfileService(repository.NewMemoryUserRepository(), nil)

	principal, err := svc.CurrentUser(context.Background(), domain.IdentityUser{ID: "u-1", Email: "new@example.com"})
	require.NoError(t, err)

	assert.Equal(t, "u-1", principal.ID)
	assert.Equal(t, "new", principal.Name)
	assert.Equal(t, domain.Role(""), principal.Role)
	assert.True(t, principal.NeedsRoleSelection)
	assert.Len(t, *published, 1)
}

func TestCurrentUser_AdoptsProviderRole(t *testing.T) {
	svc, _ := newProfileService(repository.NewMemoryUserRepository(), nil)

	principal, err := svc.CurrentUser(context.Background(), domain.IdentityUser{
		ID:       "u-1",
		Email:    "host@example.com",
		Metadata: map[string]any{"role": "host", "name": "Hostess"},
	})
	require.NoError(t, err)

	assert.Equal(t, domain.RoleHost, principal.Role)
	assert.False(t, principal.NeedsRoleSelection)
	assert.Equal(t, "Hostess", principal.Name)
}

func TestCurrentUser_ReturnsExistingRecord(t *testing.T) {
	ctx := context.Background()
	users := repository.NewMemoryUserRepository()
	_, err := users.UpsertRole(ctx, repository.UpsertRoleParams{ID: "u-1", Email: "ana@example.com", Role: domain.RoleGuest})
	require.NoError(t, err)
	svc, published := newProfileService(users, nil)

	principal, err := svc.CurrentUser(ctx, domain.IdentityUser{ID: "u-1", Email: "ana@example.com", Metadata: map[string]any{"role": "host"}})
	require.NoError(t, err)

	assert.Equal(t, domain.RoleGuest, principal.Role, "the mirror wins over token metadata")
	assert.Empty(t, *published)
}

func TestCheckRoleSelection(t *testing.T) {
	ctx := context.Background()
	users := repository.NewMemoryUserRepository()
	sync := newFakeSyncStatus()
	svc, _ := newProfileService(users, sync)

	_, err := svc.CheckRoleSelection(ctx, "ana@example.com")
	assert.Equal(t, 404, apperrors.ToDomainError(err).HTTPStatus)

	_, err = svc.CurrentUser(ctx, domain.IdentityUser{ID: "u-1", Email: "ana@example.com"})
	require.NoError(t, err)
	status, err := svc.CheckRoleSelection(ctx, "ana@example.com")
	require.NoError(t, err)
	assert.True(t, status.NeedsRoleSelection)
	assert.Equal(t, domain.Role(""), status.CurrentRole)
	assert.False(t, status.SyncPending)

	_, err = users.UpsertRole(ctx, repository.UpsertRoleParams{Email: "ana@example.com", Role: domain.RoleHost})
	require.NoError(t, err)
	sync.pending["ana@example.com"] = "host"
	status, err = svc.CheckRoleSelection(ctx, "ana@example.com")
	require.NoError(t, err)
	assert.False(t, status.NeedsRoleSelection)
	assert.Equal(t, domain.RoleHost, status.CurrentRole)
	assert.True(t, status.SyncPending)
}
