package chat

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLooksLikeNoise(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"empty", "", true},
		{"single rune", "k", true},
		{"two runes", "no", true},
		{"short word", "yes", false},
		{"normal sentence", "start over please", false},
		{"long unspaced smash", strings.Repeat("asdfgh", 8), true},
		{"long but spaced", "please reset the whole design and start from scratch", false},
		{"whitespace only", "   \t  ", true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, LooksLikeNoise(tc.input))
		})
	}
}
