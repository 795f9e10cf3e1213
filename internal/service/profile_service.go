package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/dinewithus/internal/domain"
	"github.com/spec-kit/dinewithus/internal/events"
	"github.com/spec-kit/dinewithus/internal/observability"
	"github.com/spec-kit/dinewithus/internal/repository"
	apperrors "github.com/spec-kit/dinewithus/pkg/util/errorutil"
)

// SyncStatusReader reports principals whose last role change has not reached the backend.
type SyncStatusReader interface {
	Pending(ctx context.Context, email string) (bool, error)
}

// RoleSelectionStatus answers whether the role-selection interstitial applies.
type RoleSelectionStatus struct {
	NeedsRoleSelection bool
	CurrentRole        domain.Role
	SyncPending        bool
}

// ProfileService resolves identity provider users to local mirror records.
type ProfileService struct {
	users      repository.UserRepository
	syncStatus SyncStatusReader
	dispatcher events.Dispatcher
	logger     *zap.Logger
	metrics    *observability.Metrics
}

// ProfileDependencies encapsulates requirements for the profile service.
type ProfileDependencies struct {
	Users      repository.UserRepository
	SyncStatus SyncStatusReader
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	Metrics    *observability.Metrics
}

// NewProfileService builds the service.
func NewProfileService(deps ProfileDependencies) *ProfileService {
	return &ProfileService{
		users:      deps.Users,
		syncStatus: deps.SyncStatus,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
		metrics:    deps.Metrics,
	}
}

// CurrentUser returns the mirror record for user, creating it the first time the email
// is seen. A new record takes the provider's metadata role when it carries a recognized
// one; otherwise it starts without a role and needs role selection.
func (s *ProfileService) CurrentUser(ctx context.Context, user domain.IdentityUser) (*domain.Principal, error) {
	principal, err := s.users.GetByEmail(ctx, user.Email)
	if err == nil {
		return principal, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewInternalError(err)
	}

	id := user.ID
	if id == "" {
		id = uuid.NewString()
	}
	role := user.MetadataRole()
	candidate := &domain.Principal{
		ID:                 id,
		Email:              user.Email,
		Name:               user.DisplayName(),
		Role:               role,
		NeedsRoleSelection: !role.Valid(),
	}

	principal, created, err := s.users.CreateIfAbsent(ctx, candidate)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	if !created {
		return principal, nil
	}

	s.logger.Info("created mirror record",
		zap.String("email", principal.Email),
		zap.String("principal_id", principal.ID),
		zap.Bool("needs_role_selection", principal.NeedsRoleSelection))
	s.metrics.RecordPrincipalCreated()
	s.publish(ctx, events.New(events.EventPrincipalCreated, principal.Email, events.PrincipalCreatedPayload{
		PrincipalID:        principal.ID,
		Role:               principal.Role.Ptr(),
		NeedsRoleSelection: principal.NeedsRoleSelection,
	}))
	return principal, nil
}

// CheckRoleSelection reports the mirror's role state without creating a record.
func (s *ProfileService) CheckRoleSelection(ctx context.Context, email string) (*RoleSelectionStatus, error) {
	principal, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewNotFound("User", nil)
	}
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	status := &RoleSelectionStatus{
		NeedsRoleSelection: principal.RequiresRoleSelection(),
		CurrentRole:        principal.Role,
	}
	if s.syncStatus != nil {
		pending, err := s.syncStatus.Pending(ctx, email)
		if err != nil {
			s.logger.Warn("sync status lookup failed", zap.String("email", email), zap.Error(err))
		}
		status.SyncPending = pending
	}
	return status, nil
}

func (s *ProfileService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handler failed", zap.String("event_type", string(event.Type)), zap.Error(err))
	}
}
