package detection

import (
	"fmt"
	"strings"
)

// Policy decides what happens to predictions whose class is not whitelisted.
type Policy string

const (
	PolicyWhitelist   Policy = "whitelist"
	PolicyPassthrough Policy = "passthrough"
)

func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(s))); p {
	case "", PolicyWhitelist:
		return PolicyWhitelist, nil
	case PolicyPassthrough:
		return PolicyPassthrough, nil
	default:
		return "", fmt.Errorf("unknown class policy %q", s)
	}
}

// ClassWhitelist is an immutable set of accepted class labels.
type ClassWhitelist struct {
	names []string
	set   map[string]struct{}
}

func NewClassWhitelist(classes ...string) ClassWhitelist {
	w := ClassWhitelist{set: make(map[string]struct{}, len(classes))}
	for _, c := range classes {
		if _, dup := w.set[c]; dup || c == "" {
			continue
		}
		w.set[c] = struct{}{}
		w.names = append(w.names, c)
	}
	return w
}

// Contains is an exact, case-sensitive membership test.
func (w ClassWhitelist) Contains(class string) bool {
	_, ok := w.set[class]
	return ok
}

func (w ClassWhitelist) Classes() []string {
	return append([]string(nil), w.names...)
}

func (w ClassWhitelist) Len() int {
	return len(w.names)
}
