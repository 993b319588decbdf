package encode

import "regexp"

// unsafeChars are characters that break column identifiers or the GDF field grammar.
var unsafeChars = regexp.MustCompile(`[/\\;,\s\v.<>&!:"()*+?|=#@']`)

// Sanitizer replaces every unsafe character with Replace, one for one.
type Sanitizer struct {
	Replace string
}

// Clean returns s with unsafe characters replaced.
func (s Sanitizer) Clean(v string) string {
	return unsafeChars.ReplaceAllLiteralString(v, s.Replace)
}

// IsUnsafe reports whether v contains a character Clean would replace.
func IsUnsafe(v string) bool { return unsafeChars.MatchString(v) }
