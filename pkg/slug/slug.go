package slug

import (
	"regexp"
	"strings"
)

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// MaxLength is the longest slug the catalog schema accepts.
const MaxLength = 200

// Generate creates a URL-friendly slug from the given name, truncated to
// MaxLength characters.
//
// Examples:
//   - "Drift Detection Suite" → "drift-detection-suite"
//   - "Café Nürnberg!" → "cafe-nurnberg"
func Generate(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))

	// Fold common accented characters to ASCII equivalents.
	replacer := strings.NewReplacer(
		"à", "a", "á", "a", "â", "a", "ä", "a",
		"ç", "c", "è", "e", "é", "e", "ê", "e", "ë", "e",
		"ì", "i", "í", "i", "î", "i", "ï", "i",
		"ñ", "n", "ò", "o", "ó", "o", "ô", "o", "ö", "o",
		"ù", "u", "ú", "u", "û", "u", "ü", "u",
	)
	s = replacer.Replace(s)

	s = nonAlnum.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")

	for strings.Contains(s, "--") {
		s = strings.ReplaceAll(s, "--", "-")
	}

	return Truncate(s, MaxLength)
}

// WithPrefix generates a slug with a namespace prefix, used to keep test-mode
// records from colliding with their live-mode equivalents. The combined slug
// still fits MaxLength.
func WithPrefix(prefix, name string) string {
	p := strings.Trim(nonAlnum.ReplaceAllString(strings.ToLower(prefix), "-"), "-")
	base := Generate(name)
	if p == "" {
		return base
	}
	return Truncate(p+"-"+base, MaxLength)
}

// Truncate cuts a slug to at most n characters without leaving a trailing hyphen.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.TrimRight(s[:n], "-")
}
