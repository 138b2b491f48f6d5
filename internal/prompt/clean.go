package prompt

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// FirstLine trims a model response down to its first non-empty line.
func FirstLine(response string) string {
	for _, line := range strings.Split(response, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			return trimmed
		}
	}
	return strings.TrimSpace(response)
}

var deaccent = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// CleanBranchName sanitizes a model response into a usable git branch name:
// first line only, quotes stripped, accents folded, lowercased, kebab-case.
// Slashes survive so prefixes like feature/ work.
func CleanBranchName(response string) string {
	name := FirstLine(response)
	name = strings.Trim(name, "\"'`")

	if folded, _, err := transform.String(deaccent, name); err == nil {
		name = folded
	}
	name = strings.ToLower(name)

	var b strings.Builder
	b.Grow(len(name))
	lastDash := true
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		case r == '/':
			b.WriteRune(r)
			lastDash = true
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.Trim(b.String(), "-/")
}
