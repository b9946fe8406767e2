package features

import "strings"

// Roles maps the physical roles the forecaster writes back into a feature
// row to their column index. A role with no matching column is -1.
type Roles struct {
	Target    int // Kp
	Amplitude int // ap
	Flux      int // F10.7
}

// NewRoles resolves every role once from the canonical column list.
// Exact names win over prefix matches (so "kp" beats "kp_d1").
func NewRoles(cols []string) Roles {
	lower := make([]string, len(cols))
	for i, c := range cols {
		lower[i] = strings.ToLower(c)
	}
	return Roles{
		// any kp* column matches, not only kp_dN
		Target:    findColumn(lower, "kp"),
		Amplitude: findColumn(lower, "ap"),
		Flux:      findColumn(lower, "f107", "f10.7", "f10_7"),
	}
}

// TargetOrFirst returns the target index, or 0 when no column matched.
func (r Roles) TargetOrFirst() int {
	if r.Target < 0 {
		return 0
	}
	return r.Target
}

func findColumn(lower []string, names ...string) int {
	for _, n := range names {
		for i, c := range lower {
			if c == n {
				return i
			}
		}
	}
	for i, c := range lower {
		for _, n := range names {
			if strings.HasPrefix(c, n) {
				return i
			}
		}
	}
	return -1
}
