package domain

import "time"

// Principal is the local mirror record of an authenticated actor. Email is the join key
// with the identity provider and is unique.
type Principal struct {
	ID                 string
	Email              string
	Name               string
	Role               Role
	NeedsRoleSelection bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// RequiresRoleSelection is true while the principal has no usable role.
func (p *Principal) RequiresRoleSelection() bool {
	if p == nil {
		return false
	}
	return !p.Role.Valid() || p.NeedsRoleSelection
}

// EffectiveRole is the role used for access decisions. A principal that still has to pick
// a role gets none.
func (p *Principal) EffectiveRole() Role {
	if p == nil || p.RequiresRoleSelection() {
		return ""
	}
	return p.Role
}
