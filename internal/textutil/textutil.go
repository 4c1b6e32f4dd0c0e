// Package textutil normalizes user supplied text.
package textutil

import "strings"

// Truncate cuts s to at most max code points. A max <= 0 disables truncation.
func Truncate(s string, max int) string {
	if max <= 0 {
		return s
	}
	n := 0
	for i := range s {
		if n == max {
			return s[:i]
		}
		n++
	}
	return s
}

// Clean trims surrounding whitespace, then truncates to max code points.
func Clean(s string, max int) string {
	return Truncate(strings.TrimSpace(s), max)
}

// Length counts code points.
func Length(s string) int {
	n := 0
	for range s {
		n++
	}
	return n
}
