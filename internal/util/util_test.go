package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrimQuotes(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty string", "", ""},
		{"no quotes", "hello", "hello"},
		{"double quoted", `"hello"`, "hello"},
		{"single quotes only", "'hello'", "'hello'"},
		{"quotes in middle", `he"llo`, `he"llo`},
		{"only quotes", `""`, ""},
		{"one pair only", `"""a"""`, `""a""`},
		{"unbalanced", `"hello`, `"hello`},
		{"single quote char", `"`, `"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, TrimQuotes(tt.input))
		})
	}
}

func TestFixEscapeQuotes(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty string", "", ""},
		{"no escaped quotes", "hello", "hello"},
		{"single escaped quote", `he""llo`, `he"llo`},
		{"multiple escaped quotes", `a""b""c`, `a"b"c`},
		{"consecutive escaped", `a""""b`, `a""b`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FixEscapeQuotes(tt.input))
		})
	}
}

func TestUnquoteArgs(t *testing.T) {
	got := UnquoteArgs([]string{`"AI Vehicle Spawned"`, `"say ""hi"""`, `"b ""c"""`, "plain"})
	assert.Equal(t, []string{"AI Vehicle Spawned", `say "hi"`, `b "c"`, "plain"}, got)
}

func TestSplitCommand(t *testing.T) {
	tests := []struct {
		input   string
		command string
		args    []string
	}{
		{":TICK:", ":TICK:", nil},
		{":NOTIFY:|hello", ":NOTIFY:", []string{"hello"}},
		{`:NOTIFY:|"quoted"|two`, ":NOTIFY:", []string{`"quoted"`, "two"}},
		{"", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			cmd, args := SplitCommand(tt.input)
			assert.Equal(t, tt.command, cmd)
			assert.Equal(t, tt.args, args)
		})
	}
}
