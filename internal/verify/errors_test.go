package verify

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestSnippet(t *testing.T) {
	tests := []struct {
		name string
		in   string
		n    int
		want string
	}{
		{"short", "abc", 10, "abc"},
		{"exact", "abcde", 5, "abcde"},
		{"ascii cut", "abcdef", 4, "abcd..."},
		{"cut inside two-byte rune", "aé", 2, "a..."},
		{"cut inside three-byte rune", "ab€", 3, "ab..."},
		{"cut after rune", "é€x", 5, "é€..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := snippet(tt.in, tt.n)
			assert.Equal(t, tt.want, got)
			assert.True(t, utf8.ValidString(got))
		})
	}
}

func TestUnparsableVerdictError_MultibyteRaw(t *testing.T) {
	raw := strings.Repeat("a", 119) + "日本語の評価"
	err := &UnparsableVerdictError{Raw: raw}
	msg := err.Error()
	assert.True(t, utf8.ValidString(msg))
	assert.NotContains(t, msg, `\x`)
	assert.Contains(t, msg, "...")
}
