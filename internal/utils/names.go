package utils

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

var lineBreaks = strings.NewReplacer("\r\n", "\n", "\r", "\n")

// NormalizeName trims and NFC-normalizes a display name, so that "Zoé"
// typed with a combining accent matches the precomposed form. CR and CRLF
// become LF, the only line break a CSV export reads back unchanged.
func NormalizeName(name string) string {
	return norm.NFC.String(strings.TrimSpace(lineBreaks.Replace(name)))
}

// NormalizeNames normalizes a batch, dropping blanks and later duplicates.
func NormalizeNames(names []string) []string {
	out := make([]string, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, n := range names {
		n = NormalizeName(n)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
