package util

import "strings"

// SplitNonEmpty splits a comma separated list, trimming entries and
// dropping blanks.
func SplitNonEmpty(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
