// Package sanitizer normalizes user-supplied strings before they are stored
// or compared. Every inbound write field passes through Sanitize; rich-text
// fields additionally pass through StripHTML first.
package sanitizer

import (
	"html"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

// MaxInputLength is the cap applied to every sanitized string, in runes.
const MaxInputLength = 1000

// stripPolicy removes every HTML element, leaving only text content.
var stripPolicy = bluemonday.StrictPolicy()

// Sanitize removes null bytes, truncates to MaxInputLength, strips angle
// brackets and trims surrounding whitespace. It is idempotent and never
// fails: the result is always a plain string.
func Sanitize(input string) string {
	s := strings.ReplaceAll(input, "\x00", "")

	// Truncate by rune so a multi-byte character is never split.
	if utf8.RuneCountInString(s) > MaxInputLength {
		runes := []rune(s)
		s = string(runes[:MaxInputLength])
	}

	s = strings.Map(func(r rune) rune {
		if r == '<' || r == '>' {
			return -1
		}
		return r
	}, s)

	return strings.TrimSpace(s)
}

// StripHTML removes markup from a rich-text field and then applies Sanitize.
// Entity escapes introduced by the policy are unescaped so the stored value
// is plain text.
func StripHTML(input string) string {
	stripped := stripPolicy.Sanitize(input)
	return Sanitize(html.UnescapeString(stripped))
}
