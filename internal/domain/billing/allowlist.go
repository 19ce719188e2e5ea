package billing

import "strings"

// Allowlist is the static set of handles that bypass quota checks.
type Allowlist struct {
	handles map[string]struct{}
}

// NewAllowlist builds an allowlist from usernames. Matching ignores case and
// a leading "@".
func NewAllowlist(handles []string) *Allowlist {
	a := &Allowlist{handles: make(map[string]struct{}, len(handles))}
	for _, h := range handles {
		if n := normalizeHandle(h); n != "" {
			a.handles[n] = struct{}{}
		}
	}
	return a
}

// IsUnlimited reports whether identity is on the allowlist.
func (a *Allowlist) IsUnlimited(identity string) bool {
	if a == nil {
		return false
	}
	n := normalizeHandle(identity)
	if n == "" {
		return false
	}
	_, ok := a.handles[n]
	return ok
}

// Len returns the number of configured handles.
func (a *Allowlist) Len() int {
	if a == nil {
		return 0
	}
	return len(a.handles)
}

func normalizeHandle(h string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(h), "@"))
}
