package validators

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeString(t *testing.T) {
	cases := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{"trims", "  ref-001  ", 0, "ref-001"},
		{"drops control characters", "bank\r\nref\x00-9", 0, "bankref-9"},
		{"truncates ascii", "abcdef", 4, "abcd"},
		{"keeps whole runes", "pago añejo", 7, "pago a"},
		{"no limit", "unbounded", 0, "unbounded"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, SanitizeString(tc.in, tc.max))
		})
	}
}
