package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/dinewithus/internal/domain"
	"github.com/spec-kit/dinewithus/internal/guard"
	"github.com/spec-kit/dinewithus/internal/session"
)

func TestGuardFor(t *testing.T) {
	evaluate, capability, err := guardFor("host-area")
	require.NoError(t, err)
	assert.Equal(t, "host_area", string(capability))
	assert.Equal(t, guard.KindDeny, evaluate(guard.Input{Authenticated: true, Role: domain.RoleGuest}).Kind)

	_, _, err = guardFor("admin")
	assert.Error(t, err)
}

func TestPrintDecision(t *testing.T) {
	var out bytes.Buffer
	printDecision(&out, guard.Booking(guard.Input{Authenticated: true, Role: domain.RoleHost}))

	assert.Equal(t, "Denied: Host accounts cannot book dinners. Switch to a guest account to make bookings.\nGo to /host/dashboard\n", out.String())
}

func TestPrintState(t *testing.T) {
	var out bytes.Buffer
	printState(&out, session.State{Status: session.StatusUnauthenticated})
	assert.Equal(t, "Not signed in.\n", out.String())

	out.Reset()
	printState(&out, session.State{
		Status:    session.StatusNoRole,
		Principal: &domain.Principal{Email: "ana@example.com", Name: "ana", NeedsRoleSelection: true},
		Degraded:  true,
	})
	assert.Contains(t, out.String(), "Role:   (none)")
	assert.Contains(t, out.String(), "showing token claims")
}

func TestRoleSetRequiresArgument(t *testing.T) {
	root := newRootCmd()
	root.SetArgs([]string{"role", "set", "--config-dir", t.TempDir()})
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})

	assert.Error(t, root.Execute())
}
