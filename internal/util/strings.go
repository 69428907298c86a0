// Package util holds small text helpers shared by the terminal front ends.
package util

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

const ellipsis = "…"

// ClipRunes shortens s to at most n runes, ending in an ellipsis when cut.
// Use Clip for styled text.
func ClipRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n == 1 {
		return ellipsis
	}
	return string(r[:n-1]) + ellipsis
}

// Clip shortens s to at most width terminal columns. Escape sequences are
// kept intact and wide characters count double.
func Clip(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if lipgloss.Width(s) <= width {
		return s
	}
	return ansi.Truncate(s, width, ellipsis)
}
