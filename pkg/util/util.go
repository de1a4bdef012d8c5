package util

import "path"

func Diff(s1 []string, s2 []string) []string {
	result := make([]string, 0)
	for _, s := range s1 {
		if !Includes(s2, s) {
			result = append(result, s)
		}
	}

	return result
}

func Includes(ss []string, s string) bool {
	for _, existing := range ss {
		if existing == s {
			return true
		}
	}

	return false
}

// Filter selects names by glob patterns. An empty include list matches everything, and
// exclusions always take precedence over inclusions.
type Filter struct {
	Include []string
	Exclude []string
}

// Validate checks every pattern is well formed, so we fail at boot rather than silently
// matching nothing.
func (f Filter) Validate() error {
	for _, pattern := range append(append([]string{}, f.Include...), f.Exclude...) {
		if _, err := path.Match(pattern, ""); err != nil {
			return err
		}
	}

	return nil
}

func (f Filter) Match(name string) bool {
	if matchAny(f.Exclude, name) {
		return false
	}

	return len(f.Include) == 0 || matchAny(f.Include, name)
}

func matchAny(patterns []string, name string) bool {
	for _, pattern := range patterns {
		if matched, _ := path.Match(pattern, name); matched {
			return true
		}
	}

	return false
}
