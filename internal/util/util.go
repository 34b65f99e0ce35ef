// Package util holds small helpers for host call arguments.
package util

import "strings"

// TrimQuotes removes one pair of surrounding double quotes. Quotes that are
// part of the value, such as an escaped quote at the end, are kept.
func TrimQuotes(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}

// FixEscapeQuotes replaces escaped double quotes ("") with single double quotes (").
func FixEscapeQuotes(s string) string {
	return strings.ReplaceAll(s, `""`, `"`)
}

// UnquoteArg normalizes one argument as the host script passes it.
func UnquoteArg(s string) string {
	return FixEscapeQuotes(TrimQuotes(s))
}

// UnquoteArgs applies UnquoteArg to every element.
func UnquoteArgs(args []string) []string {
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = UnquoteArg(a)
	}
	return out
}

// SplitCommand splits the single-string call form "CMD|arg1|arg2" into the
// command and its arguments. Arguments are returned as passed, still quoted.
func SplitCommand(input string) (command string, args []string) {
	parts := strings.Split(input, "|")
	if len(parts) == 1 {
		return parts[0], nil
	}
	return parts[0], parts[1:]
}
