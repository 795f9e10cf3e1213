package access

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spec-kit/dinewithus/internal/domain"
)

var roles = []domain.Role{domain.RoleGuest, domain.RoleHost, "", "admin", "GUEST", " guest", "null"}

func TestCapabilities_MatchRoleExactly(t *testing.T) {
	for _, role := range roles {
		t.Run(string(role), func(t *testing.T) {
			assert.Equal(t, role == domain.RoleGuest, CanBook(role))
			assert.Equal(t, role == domain.RoleHost, CanManageHostArea(role))
		})
	}
}

func TestCapabilities_DenyUnknownRoles(t *testing.T) {
	for _, role := range []domain.Role{"", "admin", "Host", "superuser"} {
		assert.False(t, CanBook(role), "book for %q", role)
		assert.False(t, CanManageHostArea(role), "host area for %q", role)
		assert.False(t, Allowed(role, Capability("anything")))
	}
}

func TestHasRole(t *testing.T) {
	assert.True(t, HasRole(domain.RoleHost, domain.RoleHost))
	assert.True(t, HasRole(domain.RoleGuest, domain.RoleGuest))
	assert.False(t, HasRole(domain.RoleGuest, domain.RoleHost))
	assert.False(t, HasRole("", ""))
	assert.False(t, HasRole("admin", "admin"))
	assert.False(t, HasRole("Host", domain.RoleHost))
}

func TestDenialMessage(t *testing.T) {
	tests := []struct {
		name       string
		capability Capability
		role       domain.Role
		want       string
	}{
		{"host booking", CapabilityBook, domain.RoleHost, "Host accounts cannot book dinners. Switch to a guest account to make bookings."},
		{"unset booking", CapabilityBook, "", "You must be logged in as a guest to book dinners."},
		{"guest host area", CapabilityHostArea, domain.RoleGuest, "Guest accounts cannot access the host dashboard. Switch to a host account or sign up as a host."},
		{"unset host area", CapabilityHostArea, "", "You must be logged in as a host to access the dashboard."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DenialMessage(tt.capability, tt.role))
		})
	}
}

func TestRedirectTargets(t *testing.T) {
	assert.Equal(t, HostDashboardPath, RedirectTarget(domain.RoleHost))
	assert.Equal(t, SignInPath, RedirectTarget(domain.RoleGuest))
	assert.Equal(t, SignInPath, RedirectTarget(""))

	assert.Equal(t, HomePath, PostSignInTarget(domain.RoleHost, false))
	assert.Equal(t, HostDashboardPath, PostSignInTarget(domain.RoleHost, true))
	assert.Equal(t, HomePath, PostSignInTarget(domain.RoleGuest, true))

	assert.Equal(t, HostDashboardPath, AfterRoleSelectionTarget(domain.RoleHost))
	assert.Equal(t, HomePath, AfterRoleSelectionTarget(domain.RoleGuest))
}

func TestDecide(t *testing.T) {
	assert.Equal(t, Decision{Allowed: true}, Decide(CapabilityBook, domain.RoleGuest))

	denied := Decide(CapabilityHostArea, domain.RoleGuest)
	assert.False(t, denied.Allowed)
	assert.Equal(t, SignInPath, denied.Redirect)
	assert.Contains(t, denied.Message, "Guest accounts cannot access")
}

func TestParseCapability(t *testing.T) {
	c, ok := ParseCapability("host_area")
	assert.True(t, ok)
	assert.Equal(t, CapabilityHostArea, c)

	_, ok = ParseCapability("admin")
	assert.False(t, ok)
}
