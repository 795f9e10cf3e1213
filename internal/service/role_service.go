package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spec-kit/dinewithus/internal/backend"
	"github.com/spec-kit/dinewithus/internal/domain"
	"github.com/spec-kit/dinewithus/internal/events"
	"github.com/spec-kit/dinewithus/internal/observability"
	"github.com/spec-kit/dinewithus/internal/repository"
	apperrors "github.com/spec-kit/dinewithus/pkg/util/errorutil"
)

// Advisory steps of a role change, used in logs, metrics and events.
const (
	StepBackendRole = "backend_update_role"
	StepHostProfile = "backend_host_profile"
)

// MetadataUpdater writes user metadata at the identity provider.
type MetadataUpdater interface {
	UpdateUserMetadata(ctx context.Context, accessToken string, data map[string]any) (*domain.IdentityUser, error)
}

// RoleNotifier propagates role changes to the external backend.
type RoleNotifier interface {
	Configured() bool
	UpdateRole(ctx context.Context, accessToken, role string) error
	InitHostProfile(ctx context.Context, accessToken string) error
}

// SyncStatusWriter tracks principals whose backend sync is incomplete.
type SyncStatusWriter interface {
	MarkPending(ctx context.Context, email, role string) error
	Clear(ctx context.Context, email string) error
}

// SetRoleInput identifies the caller and the requested role.
type SetRoleInput struct {
	AccessToken string
	User        domain.IdentityUser
	Role        string
}

// RoleService applies a role choice to the identity provider, the local mirror and the
// external backend, in that order. Only the first two can fail the operation.
type RoleService struct {
	identity        MetadataUpdater
	users           repository.UserRepository
	backend         RoleNotifier
	syncStatus      SyncStatusWriter
	dispatcher      events.Dispatcher
	logger          *zap.Logger
	metrics         *observability.Metrics
	advisoryTimeout time.Duration
}

// RoleDependencies encapsulates requirements for the role service.
type RoleDependencies struct {
	Identity        MetadataUpdater
	Users           repository.UserRepository
	Backend         RoleNotifier
	SyncStatus      SyncStatusWriter
	Dispatcher      events.Dispatcher
	Logger          *zap.Logger
	Metrics         *observability.Metrics
	AdvisoryTimeout time.Duration
}

// NewRoleService builds the service.
func NewRoleService(deps RoleDependencies) *RoleService {
	if deps.AdvisoryTimeout <= 0 {
		deps.AdvisoryTimeout = 5 * time.Second
	}
	return &RoleService{
		identity:        deps.Identity,
		users:           deps.Users,
		backend:         deps.Backend,
		syncStatus:      deps.SyncStatus,
		dispatcher:      deps.Dispatcher,
		logger:          deps.Logger,
		metrics:         deps.Metrics,
		advisoryTimeout: deps.AdvisoryTimeout,
	}
}

// SetRole validates the role, embeds it in the provider's user metadata, upserts the
// mirror record and then notifies the backend on a best-effort basis. The returned
// principal reflects the mirror. Callers refresh their credential afterwards to obtain a
// token whose claim carries the new role.
func (s *RoleService) SetRole(ctx context.Context, in SetRoleInput) (*domain.Principal, error) {
	role, ok := domain.ParseRole(in.Role)
	if !ok {
		return nil, apperrors.NewValidationError("Invalid role", map[string]any{
			"allowed": []domain.Role{domain.RoleGuest, domain.RoleHost},
		})
	}

	if _, err := s.identity.UpdateUserMetadata(ctx, in.AccessToken, map[string]any{domain.MetadataRoleKey: string(role)}); err != nil {
		if errors.Is(err, domain.ErrInvalidCredential) {
			return nil, apperrors.NewUnauthorized("Unauthorized")
		}
		s.logger.Error("identity metadata update failed", zap.String("email", in.User.Email), zap.String("role", string(role)), zap.Error(err))
		return nil, apperrors.NewUpstreamError("failed to update role at identity provider", err)
	}

	var previous *string
	if existing, err := s.users.GetByEmail(ctx, in.User.Email); err == nil {
		previous = existing.Role.Ptr()
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewInternalError(err)
	}

	principal, err := s.users.UpsertRole(ctx, repository.UpsertRoleParams{
		ID:    in.User.ID,
		Email: in.User.Email,
		Name:  in.User.DisplayName(),
		Role:  role,
	})
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	s.metrics.RecordRoleChange(string(role))
	s.publish(ctx, events.New(events.EventRoleChanged, principal.Email, events.RoleChangedPayload{
		PrincipalID:  principal.ID,
		PreviousRole: previous,
		NewRole:      string(role),
	}))

	s.syncBackend(ctx, in.AccessToken, principal.Email, role)
	return principal, nil
}

// syncBackend runs the advisory steps concurrently, each under its own timeout. Nothing
// it does can fail SetRole.
func (s *RoleService) syncBackend(ctx context.Context, accessToken, email string, role domain.Role) {
	if s.backend == nil || !s.backend.Configured() {
		s.logger.Warn("backend API URL not configured; skipping backend role update", zap.String("email", email))
		return
	}

	// the advisory calls outlive a cancelled request but never the timeout
	base := context.WithoutCancel(ctx)

	var (
		mu     sync.Mutex
		failed []string
		g      errgroup.Group
	)
	run := func(step string, call func(context.Context) error) {
		g.Go(func() error {
			stepCtx, cancel := context.WithTimeout(base, s.advisoryTimeout)
			defer cancel()
			if err := call(stepCtx); err != nil {
				s.logAdvisoryFailure(step, email, role, err)
				mu.Lock()
				failed = append(failed, step)
				mu.Unlock()
				return nil
			}
			s.logger.Info("backend sync step succeeded", zap.String("step", step), zap.String("email", email), zap.String("role", string(role)))
			return nil
		})
	}

	run(StepBackendRole, func(ctx context.Context) error {
		return s.backend.UpdateRole(ctx, accessToken, string(role))
	})
	if role == domain.RoleHost {
		run(StepHostProfile, func(ctx context.Context) error {
			return s.backend.InitHostProfile(ctx, accessToken)
		})
	}
	_ = g.Wait()
	sort.Strings(failed)

	s.recordSyncOutcome(base, email, role, failed)
}

func (s *RoleService) recordSyncOutcome(ctx context.Context, email string, role domain.Role, failed []string) {
	ctx, cancel := context.WithTimeout(ctx, s.advisoryTimeout)
	defer cancel()

	if len(failed) == 0 {
		if s.syncStatus != nil {
			if err := s.syncStatus.Clear(ctx, email); err != nil {
				s.logger.Warn("clear sync marker failed", zap.String("email", email), zap.Error(err))
			}
		}
		return
	}

	if s.syncStatus != nil {
		if err := s.syncStatus.MarkPending(ctx, email, string(role)); err != nil {
			s.logger.Warn("mark sync pending failed", zap.String("email", email), zap.Error(err))
		}
	}
	s.publish(ctx, events.New(events.EventRoleSyncDegraded, email, events.RoleSyncDegradedPayload{
		Role:        string(role),
		FailedSteps: failed,
	}))
}

func (s *RoleService) logAdvisoryFailure(step, email string, role domain.Role, err error) {
	s.metrics.RecordAdvisoryFailure(step)
	fields := []zap.Field{
		zap.String("step", step),
		zap.String("email", email),
		zap.String("role", string(role)),
	}
	var statusErr *backend.StatusError
	if errors.As(err, &statusErr) {
		fields = append(fields, zap.Int("status", statusErr.Status), zap.String("body", statusErr.Body))
	} else {
		fields = append(fields, zap.Error(err))
	}
	s.logger.Error("backend sync step failed", fields...)
}

func (s *RoleService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handler failed", zap.String("event_type", string(event.Type)), zap.Error(err))
	}
}
