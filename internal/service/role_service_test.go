package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spec-kit/dinewithus/internal/backend"
	"github.com/spec-kit/dinewithus/internal/domain"
	"github.com/spec-kit/dinewithus/internal/events"
	"github.com/spec-kit/dinewithus/internal/identity"
	"github.com/spec-kit/dinewithus/internal/repository"
	apperrors "github.com/spec-kit/dinewithus/pkg/util/errorutil"
)

type roleFixture struct {
	svc        *RoleService
	identity   *fakeIdentity
	notifier   *fakeNotifier
	users      *repository.MemoryUserRepository
	syncStatus *fakeSyncStatus
	logs       *observer.ObservedLogs
	published  []events.Event
}

func newRoleFixture(t *testing.T) *roleFixture {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	f := &roleFixture{
		identity:   &fakeIdentity{},
		notifier:   &fakeNotifier{configured: true},
		users:      repository.NewMemoryUserRepository(),
		syncStatus: newFakeSyncStatus(),
		logs:       logs,
	}
	dispatcher := events.NewInMemoryDispatcher()
	for _, et := range []events.EventType{events.EventRoleChanged, events.EventRoleSyncDegraded} {
		dispatcher.Subscribe(et, func(_ context.Context, e events.Event) error {
			f.published = append(f.published, e)
			return nil
		})
	}
	f.svc = NewRoleService(RoleDependencies{
		Identity:        f.identity,
		Users:           f.users,
		Backend:         f.notifier,
		SyncStatus:      f.syncStatus,
		Dispatcher:      dispatcher,
		Logger:          zap.New(core),
		AdvisoryTimeout: 50 * time.Millisecond,
	})
	return f
}

func input(role string) SetRoleInput {
	return SetRoleInput{
		AccessToken: "tok",
		User:        domain.IdentityUser{ID: "u-1", Email: "ana@example.com"},
		Role:        role,
	}
}

func TestSetRole_RejectsUnknownRoleBeforeAnyCall(t *testing.T) {
	for _, role := range []string{"admin", "", "HOST", "null"} {
		f := newRoleFixture(t)

		_, err := f.svc.SetRole(context.Background(), input(role))

		var domainErr *apperrors.DomainError
		require.True(t, errors.As(err, &domainErr), role)
		assert.Equal(t, 400, domainErr.HTTPStatus)
		assert.Empty(t, f.identity.calls)
		assert.Empty(t, f.notifier.roleCalls)
		_, err = f.users.GetByEmail(context.Background(), "ana@example.com")
		assert.ErrorIs(t, err, repository.ErrNotFound)
	}
}

func TestSetRole_HostUpdatesAllThreeSystems(t *testing.T) {
	f := newRoleFixture(t)
	f.syncStatus.pending["ana@example.com"] = "guest"

	principal, err := f.svc.SetRole(context.Background(), input("host"))
	require.NoError(t, err)

	assert.Equal(t, domain.RoleHost, principal.Role)
	assert.False(t, principal.NeedsRoleSelection)
	assert.Equal(t, []map[string]any{{"role": "host"}}, f.identity.calls)
	assert.Equal(t, []string{"host"}, f.notifier.roleCalls)
	assert.Equal(t, 1, f.notifier.hostCalls)
	assert.Empty(t, f.syncStatus.pending, "successful sync clears the marker")

	require.Len(t, f.published, 1)
	assert.Equal(t, events.EventRoleChanged, f.published[0].Type)
}

func TestSetRole_GuestSkipsHostProfile(t *testing.T) {
	f := newRoleFixture(t)

	_, err := f.svc.SetRole(context.Background(), input("guest"))
	require.NoError(t, err)

	assert.Equal(t, []string{"guest"}, f.notifier.roleCalls)
	assert.Zero(t, f.notifier.hostCalls)
}

func TestSetRole_AdvisoryFailureStillSucceeds(t *testing.T) {
	f := newRoleFixture(t)
	f.notifier.roleErr = errNetwork
	f.notifier.hostErr = &backend.StatusError{Status: 500, Body: "boom"}

	principal, err := f.svc.SetRole(context.Background(), input("host"))
	require.NoError(t, err)
	assert.Equal(t, domain.RoleHost, principal.Role)

	stored, err := f.users.GetByEmail(context.Background(), "ana@example.com")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleHost, stored.Role)

	assert.Equal(t, "host", f.syncStatus.pending["ana@example.com"])
	assert.Equal(t, 2, f.logs.FilterMessage("backend sync step failed").Len())

	require.Len(t, f.published, 2)
	degraded := f.published[1]
	assert.Equal(t, events.EventRoleSyncDegraded, degraded.Type)
	assert.Equal(t, []string{StepHostProfile, StepBackendRole}, degraded.Payload.(events.RoleSyncDegradedPayload).FailedSteps)
}

func TestSetRole_SingleAdvisoryFailure(t *testing.T) {
	f := newRoleFixture(t)
	f.notifier.hostErr = &backend.StatusError{Status: 502, Body: "bad gateway"}

	_, err := f.svc.SetRole(context.Background(), input("host"))
	require.NoError(t, err)

	assert.Equal(t, []string{"host"}, f.notifier.roleCalls)
	assert.Equal(t, "host", f.syncStatus.pending["ana@example.com"])
	assert.Equal(t, 1, f.logs.FilterMessage("backend sync step failed").Len())

	require.Len(t, f.published, 2)
	payload := f.published[1].Payload.(events.RoleSyncDegradedPayload)
	assert.Equal(t, []string{StepHostProfile}, payload.FailedSteps)
}

func TestSetRole_SlowBackendBoundedByTimeout(t *testing.T) {
	f := newRoleFixture(t)
	f.notifier.block = true

	start := time.Now()
	_, err := f.svc.SetRole(context.Background(), input("host"))
	require.NoError(t, err)

	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, 2, f.notifier.deadlineHit, "both advisory steps run concurrently and time out")
}

func TestSetRole_IdentityFailureIsFatal(t *testing.T) {
	f := newRoleFixture(t)
	f.identity.err = errors.New("provider down")

	_, err := f.svc.SetRole(context.Background(), input("host"))

	var domainErr *apperrors.DomainError
	require.True(t, errors.As(err, &domainErr))
	assert.Equal(t, "UPSTREAM_FAILED", domainErr.Code)
	assert.Empty(t, f.notifier.roleCalls)
	_, err = f.users.GetByEmail(context.Background(), "ana@example.com")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestSetRole_RejectedTokenIsUnauthorized(t *testing.T) {
	f := newRoleFixture(t)
	f.identity.err = domain.ErrInvalidCredential

	_, err := f.svc.SetRole(context.Background(), input("guest"))

	assert.Equal(t, 401, apperrors.ToDomainError(err).HTTPStatus)
}

func TestSetRole_MetadataRefusalIsUpstreamFailure(t *testing.T) {
	f := newRoleFixture(t)
	f.identity.err = &identity.RejectedError{Method: "PUT", Path: "/auth/v1/user", Status: 422}

	_, err := f.svc.SetRole(context.Background(), input("host"))

	domainErr := apperrors.ToDomainError(err)
	assert.Equal(t, "UPSTREAM_FAILED", domainErr.Code)
	assert.NotEqual(t, 401, domainErr.HTTPStatus)
}

func TestSetRole_Idempotent(t *testing.T) {
	ctx := context.Background()
	f := newRoleFixture(t)

	_, err := f.svc.SetRole(ctx, input("host"))
	require.NoError(t, err)
	once, err := f.users.GetByEmail(ctx, "ana@example.com")
	require.NoError(t, err)

	_, err = f.svc.SetRole(ctx, input("host"))
	require.NoError(t, err)
	twice, err := f.users.GetByEmail(ctx, "ana@example.com")
	require.NoError(t, err)

	assert.Equal(t, once.ID, twice.ID)
	assert.Equal(t, once.Email, twice.Email)
	assert.Equal(t, once.Role, twice.Role)
	assert.Equal(t, once.NeedsRoleSelection, twice.NeedsRoleSelection)
}

func TestSetRole_BackendNotConfigured(t *testing.T) {
	f := newRoleFixture(t)
	f.notifier.configured = false

	principal, err := f.svc.SetRole(context.Background(), input("guest"))
	require.NoError(t, err)

	assert.Equal(t, domain.RoleGuest, principal.Role)
	assert.Empty(t, f.notifier.roleCalls)
	assert.Equal(t, 1, f.logs.FilterMessage("backend API URL not configured; skipping backend role update").Len())
}

func TestSetRole_FirstSelectionCreatesMirrorRecord(t *testing.T) {
	f := newRoleFixture(t)
	in := input("guest")
	in.User.Metadata = map[string]any{"name": "Ana"}

	principal, err := f.svc.SetRole(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, "u-1", principal.ID)
	assert.Equal(t, "Ana", principal.Name)
	assert.Equal(t, domain.RoleGuest, principal.Role)
}
