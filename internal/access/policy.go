// Package access maps roles to capabilities. Nothing else in the module compares role
// strings; roles without a policy line are denied every capability.
package access

import (
	_ "embed"
	"fmt"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	stringadapter "github.com/casbin/casbin/v2/persist/string-adapter"

	"github.com/spec-kit/dinewithus/internal/domain"
)

//go:embed model.conf
var modelContent string

//go:embed policy.csv
var policyContent string

// Capability is an action gated by role.
type Capability string

const (
	CapabilityBook     Capability = "book"
	CapabilityHostArea Capability = "host_area"
)

// Well-known views the policy redirects to.
const (
	HomePath          = "/"
	SignInPath        = "/auth/signin"
	RoleSelectionPath = "/auth/role-selection"
	HostDashboardPath = "/host/dashboard"
)

// ParseCapability accepts the capability names used on the wire.
func ParseCapability(value string) (Capability, bool) {
	switch Capability(value) {
	case CapabilityBook, CapabilityHostArea:
		return Capability(value), true
	default:
		return "", false
	}
}

var enforcer = mustEnforcer()

func mustEnforcer() *casbin.SyncedEnforcer {
	m, err := model.NewModelFromString(modelContent)
	if err != nil {
		panic(fmt.Sprintf("parse access model: %v", err))
	}
	e, err := casbin.NewSyncedEnforcer(m, stringadapter.NewAdapter(policyContent))
	if err != nil {
		panic(fmt.Sprintf("load access policy: %v", err))
	}
	return e
}

// Allowed reports whether role holds capability. Unset and unknown roles are denied.
func Allowed(role domain.Role, capability Capability) bool {
	if !role.Valid() {
		return false
	}
	ok, err := enforcer.Enforce(string(role), string(capability))
	return err == nil && ok
}

// HasRole reports whether role is exactly required. Unset and unknown roles never match.
func HasRole(role, required domain.Role) bool {
	return role.Valid() && required.Valid() && role == required
}

// CanBook is true only for guests.
func CanBook(role domain.Role) bool {
	return Allowed(role, CapabilityBook)
}

// CanManageHostArea is true only for hosts.
func CanManageHostArea(role domain.Role) bool {
	return Allowed(role, CapabilityHostArea)
}

// DenialMessage explains why role lacks capability.
func DenialMessage(capability Capability, role domain.Role) string {
	switch capability {
	case CapabilityBook:
		if role == domain.RoleHost {
			return "Host accounts cannot book dinners. Switch to a guest account to make bookings."
		}
		return "You must be logged in as a guest to book dinners."
	case CapabilityHostArea:
		if role == domain.RoleGuest {
			return "Guest accounts cannot access the host dashboard. Switch to a host account or sign up as a host."
		}
		return "You must be logged in as a host to access the dashboard."
	default:
		return "You don't have the required permissions to access this page"
	}
}

// RedirectTarget is the recovery view offered alongside a denial.
func RedirectTarget(role domain.Role) string {
	if role == domain.RoleHost {
		return HostDashboardPath
	}
	return SignInPath
}

// PostSignInTarget is where a principal lands after signing in.
func PostSignInTarget(role domain.Role, authenticated bool) string {
	if !authenticated {
		return HomePath
	}
	if role == domain.RoleHost {
		return HostDashboardPath
	}
	return HomePath
}

// AfterRoleSelectionTarget is where a principal lands once a role has been chosen.
func AfterRoleSelectionTarget(role domain.Role) string {
	if role == domain.RoleHost {
		return HostDashboardPath
	}
	return HomePath
}

// Decision is the outcome of checking one capability.
type Decision struct {
	Allowed  bool   `json:"allowed"`
	Message  string `json:"message,omitempty"`
	Redirect string `json:"redirect,omitempty"`
}

// Decide bundles the allow check with the denial message and recovery target.
func Decide(capability Capability, role domain.Role) Decision {
	if Allowed(role, capability) {
		return Decision{Allowed: true}
	}
	return Decision{
		Message:  DenialMessage(capability, role),
		Redirect: RedirectTarget(role),
	}
}
