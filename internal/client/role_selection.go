package client

import (
	"context"
	"fmt"

	"github.com/spec-kit/dinewithus/internal/access"
	"github.com/spec-kit/dinewithus/internal/domain"
	"github.com/spec-kit/dinewithus/internal/session"
)

// RoleSelector drives the role-selection view: one selection at a time, then a
// credential refresh so the new role claim is visible.
type RoleSelector struct {
	api      *APIClient
	files    *FileSessionStore
	sessions *session.Store
}

// NewRoleSelector builds a selector.
func NewRoleSelector(api *APIClient, files *FileSessionStore, sessions *session.Store) *RoleSelector {
	return &RoleSelector{api: api, files: files, sessions: sessions}
}

// Select applies role and returns the view to continue to. Unknown roles are refused
// before any request is made.
func (r *RoleSelector) Select(ctx context.Context, role string) (string, error) {
	if _, ok := domain.ParseRole(role); !ok {
		return "", fmt.Errorf("invalid role %q: choose guest or host", role)
	}

	release, err := r.files.Lock()
	if err != nil {
		return "", err
	}
	defer release()

	state := r.sessions.State()
	if !state.Authenticated() || state.Session == nil {
		return "", domain.ErrInvalidCredential
	}

	chosen, err := r.api.UpdateRole(ctx, state.Session.AccessToken, role)
	if err != nil {
		return "", err
	}
	target := access.AfterRoleSelectionTarget(chosen)
	if _, err := r.sessions.Refresh(ctx); err != nil {
		return target, fmt.Errorf("role saved but credential refresh failed: %w", err)
	}
	return target, nil
}
