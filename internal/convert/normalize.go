// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"regexp"
	"strings"
)

// specialSpaces are mapped to an ordinary space before collapsing.
var specialSpaces = map[rune]bool{
	'\u00A0': true, // no-break space
	'\u2000': true, '\u2001': true, '\u2002': true, '\u2003': true,
	'\u2004': true, '\u2005': true, '\u2006': true, '\u2007': true,
	'\u2008': true, '\u2009': true, '\u200A': true,
	'\u202F': true, // narrow no-break space
	'\u205F': true, // medium mathematical space
	'\u3000': true, // ideographic space
	'\uFEFF': true, // zero width no-break space
	'\u2060': true, // word joiner
	'\u180E': true, // mongolian vowel separator
}

var horizontalSpace = regexp.MustCompile(`[ \t\v\f\r]+`)

// NormalizeSpaces maps special spaces to ' ' and collapses runs of
// horizontal whitespace. Newlines are kept. It is idempotent.
func NormalizeSpaces(text string) string {
	if text == "" {
		return text
	}
	mapped := strings.Map(func(r rune) rune {
		if specialSpaces[r] {
			return ' '
		}
		return r
	}, text)
	return horizontalSpace.ReplaceAllString(mapped, " ")
}
