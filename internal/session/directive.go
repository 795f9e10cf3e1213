package session

import "github.com/spec-kit/dinewithus/internal/access"

// ViewDirective asks the front end to navigate. The zero value means stay.
type ViewDirective struct {
	Navigate string
}

// None reports whether the directive asks for nothing.
func (d ViewDirective) None() bool { return d.Navigate == "" }

// Directive computes the forced role-selection interstitial for state as seen from
// currentView. Degraded principals are never redirected: their role comes from a claim
// that may simply be stale.
func Directive(state State, currentView string) ViewDirective {
	if state.Status != StatusNoRole || state.Degraded {
		return ViewDirective{}
	}
	if currentView == access.RoleSelectionPath {
		return ViewDirective{}
	}
	return ViewDirective{Navigate: access.RoleSelectionPath}
}
