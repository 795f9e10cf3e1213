package dto

import (
	"time"

	"github.com/spec-kit/dinewithus/internal/domain"
	"github.com/spec-kit/dinewithus/internal/service"
)

// PrincipalResponse is the mirror record as the front end sees it. Role is null until
// one has been chosen.
type PrincipalResponse struct {
	ID                 string     `json:"id"`
	Email              string     `json:"email"`
	Name               string     `json:"name"`
	Role               *string    `json:"role"`
	NeedsRoleSelection bool       `json:"needsRoleSelection"`
	CreatedAt          *time.Time `json:"createdAt,omitempty"`
	UpdatedAt          *time.Time `json:"updatedAt,omitempty"`
}

// NewPrincipalResponse converts a mirror record.
func NewPrincipalResponse(p *domain.Principal) PrincipalResponse {
	resp := PrincipalResponse{
		ID:                 p.ID,
		Email:              p.Email,
		Name:               p.Name,
		Role:               p.Role.Ptr(),
		NeedsRoleSelection: p.NeedsRoleSelection,
	}
	if !p.CreatedAt.IsZero() {
		resp.CreatedAt = &p.CreatedAt
		resp.UpdatedAt = &p.UpdatedAt
	}
	return resp
}

// Principal converts the response back for clients of the API.
func (r PrincipalResponse) Principal() *domain.Principal {
	p := &domain.Principal{
		ID:                 r.ID,
		Email:              r.Email,
		Name:               r.Name,
		NeedsRoleSelection: r.NeedsRoleSelection,
	}
	if r.Role != nil {
		p.Role = domain.Role(*r.Role)
	}
	if r.CreatedAt != nil {
		p.CreatedAt = *r.CreatedAt
	}
	if r.UpdatedAt != nil {
		p.UpdatedAt = *r.UpdatedAt
	}
	return p
}

// CurrentUserResponse answers GET /api/auth/current-user.
type CurrentUserResponse struct {
	User    PrincipalResponse `json:"user"`
	Session PrincipalResponse `json:"session"`
}

// RoleSelectionResponse answers GET /api/auth/check-role-selection.
type RoleSelectionResponse struct {
	NeedsRoleSelection bool    `json:"needsRoleSelection"`
	CurrentRole        *string `json:"currentRole"`
	SyncPending        bool    `json:"syncPending"`
}

// NewRoleSelectionResponse converts a service status.
func NewRoleSelectionResponse(s *service.RoleSelectionStatus) RoleSelectionResponse {
	return RoleSelectionResponse{
		NeedsRoleSelection: s.NeedsRoleSelection,
		CurrentRole:        s.CurrentRole.Ptr(),
		SyncPending:        s.SyncPending,
	}
}

// UpdateRoleRequest payload.
type UpdateRoleRequest struct {
	Role string `json:"role"`
}

// UpdateRoleResponse answers POST /api/auth/update-role.
type UpdateRoleResponse struct {
	Success bool   `json:"success"`
	Role    string `json:"role"`
}

// ErrorEnvelope is the error body every route renders.
type ErrorEnvelope struct {
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details,omitempty"`
	} `json:"error"`
}
