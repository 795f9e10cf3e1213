// Package guard decides what a view gated by role should show. Decisions are pure
// functions of the session triple (loading, authenticated, role); navigation happens only
// through a Navigator reacting to decision changes.
package guard

import (
	"github.com/spec-kit/dinewithus/internal/access"
	"github.com/spec-kit/dinewithus/internal/domain"
	"github.com/spec-kit/dinewithus/internal/session"
)

// Kind is the outcome class of a guard.
type Kind string

const (
	KindLoading      Kind = "loading"
	KindRedirect     Kind = "redirect"
	KindDeny         Kind = "deny"
	KindInsufficient Kind = "insufficient"
	KindRender       Kind = "render"
)

const (
	signInRequiredMessage = "You need to sign in to access this page"
	insufficientMessage   = "You don't have the required permissions to access this page"
)

// Input is everything a guard looks at.
type Input struct {
	Loading            bool
	Authenticated      bool
	Role               domain.Role
	NeedsRoleSelection bool
	View               string
}

// FromState derives guard input from a store snapshot. Degraded principals never need
// role selection here, matching session.Directive.
func FromState(state session.State, view string) Input {
	return Input{
		Loading:            state.Loading(),
		Authenticated:      state.Authenticated(),
		Role:               state.Role(),
		NeedsRoleSelection: state.Status == session.StatusNoRole && !state.Degraded,
		View:               view,
	}
}

// Decision is what the gated view shows. Target is the navigation for KindRedirect;
// Action is the recovery button offered with a denial.
type Decision struct {
	Kind    Kind
	Target  string
	Message string
	Action  string
}

// Booking gates views that book dinners.
func Booking(in Input) Decision {
	return capability(in, access.CapabilityBook)
}

// HostArea gates the host dashboard and dinner management.
func HostArea(in Input) Decision {
	return capability(in, access.CapabilityHostArea)
}

// ProtectedOptions parameterizes Protected.
type ProtectedOptions struct {
	// RedirectTo defaults to the sign-in view.
	RedirectTo   string
	RequiredRole domain.Role
}

// Protected gates a view on authentication and, optionally, on an exact role.
func Protected(in Input, opts ProtectedOptions) Decision {
	redirectTo := opts.RedirectTo
	if redirectTo == "" {
		redirectTo = access.SignInPath
	}
	if d, done := preamble(in, redirectTo); done {
		if !in.Loading && !in.Authenticated {
			d.Message = signInRequiredMessage
		}
		return d
	}
	if opts.RequiredRole != "" && !access.HasRole(in.Role, opts.RequiredRole) {
		return Decision{Kind: KindInsufficient, Message: insufficientMessage, Action: access.HomePath}
	}
	return Decision{Kind: KindRender}
}

func capability(in Input, c access.Capability) Decision {
	if d, done := preamble(in, access.SignInPath); done {
		return d
	}
	decision := access.Decide(c, in.Role)
	if !decision.Allowed {
		return Decision{Kind: KindDeny, Message: decision.Message, Action: decision.Redirect}
	}
	return Decision{Kind: KindRender}
}

// preamble handles what every guard does before looking at the role: wait for loading,
// send anonymous visitors away and hold principals without a role at the interstitial.
func preamble(in Input, signIn string) (Decision, bool) {
	switch {
	case in.Loading:
		return Decision{Kind: KindLoading}, true
	case !in.Authenticated:
		return Decision{Kind: KindRedirect, Target: signIn}, true
	case in.NeedsRoleSelection && in.View != access.RoleSelectionPath:
		return Decision{Kind: KindRedirect, Target: access.RoleSelectionPath}, true
	}
	return Decision{}, false
}
