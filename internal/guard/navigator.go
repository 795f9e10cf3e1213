package guard

import "sync"

// Navigator performs the redirects guards ask for. It navigates only when the requested
// target changes, so evaluating the same decision on every render issues one navigation.
type Navigator struct {
	mu       sync.Mutex
	last     string
	navigate func(target string)
}

// NewNavigator wraps the front end's navigation primitive.
func NewNavigator(navigate func(target string)) *Navigator {
	return &Navigator{navigate: navigate}
}

// Apply reacts to a decision and reports whether it navigated.
func (n *Navigator) Apply(d Decision) bool {
	n.mu.Lock()
	if d.Kind != KindRedirect {
		n.last = ""
		n.mu.Unlock()
		return false
	}
	if d.Target == n.last {
		n.mu.Unlock()
		return false
	}
	n.last = d.Target
	n.mu.Unlock()

	n.navigate(d.Target)
	return true
}
