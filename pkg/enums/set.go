package enums

import (
	"fmt"
	"slices"
	"strings"
)

// set is the closed value list behind an enum's IsValid and Parse.
type set[T ~string] struct {
	name string
	// upper accepts any casing and surrounding space on parse. Enums
	// persisted in lowercase (outbox, roles) are matched exactly.
	upper  bool
	values []T
}

func newSet[T ~string](name string, upper bool, values ...T) set[T] {
	return set[T]{name: name, upper: upper, values: values}
}

func (s set[T]) has(v T) bool {
	return slices.Contains(s.values, v)
}

func (s set[T]) parse(raw string) (T, error) {
	v := T(raw)
	if s.upper {
		v = T(strings.ToUpper(strings.TrimSpace(raw)))
	}
	if s.has(v) {
		return v, nil
	}
	var zero T
	return zero, fmt.Errorf("invalid %s %q", s.name, raw)
}
