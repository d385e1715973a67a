// Package text holds small string helpers shared by the log and warning paths.
package text

import "unicode/utf8"

const ellipsis = "..."

// Truncate shortens s to at most max runes, appending an ellipsis when it
// cuts. max <= 0 disables truncation.
func Truncate(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	n := 0
	for i := range s {
		if n == max {
			return s[:i] + ellipsis
		}
		n++
	}
	return s
}
