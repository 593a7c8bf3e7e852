// Package normalize repairs model output before and after structured
// extraction: escape defects in the raw completion text, and field
// canonicalization on freshly extracted task records.
package normalize

import (
	"encoding/json"
	"log"
	"os"
	"strings"
)

// Logger receives non-fatal correction warnings. Tests may swap it out.
var Logger = log.New(os.Stderr, "", log.LstdFlags)

// Response repairs known escaping defects in completion text that was
// intended to be JSON. Applied in a single left-to-right scan:
//
//  1. erroneous \' escapes are un-escaped (JSON has no \' sequence)
//  2. a backslash not followed by a recognized escape character is
//     itself escaped
//  3. typographic quotes are normalized: single curly quotes become
//     apostrophes, double curly quotes become \" inside a string and
//     " outside one
//
// The transformation is deterministic and idempotent, and is a no-op
// on text that is already valid JSON.
func Response(s string) string {
	if json.Valid([]byte(s)) {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))

	runes := []rune(s)
	inString := false
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == '\\':
			if i+1 < len(runes) {
				next := runes[i+1]
				switch {
				case next == '\'':
					b.WriteRune('\'')
					i++
				case isEscapeChar(next):
					b.WriteRune('\\')
					b.WriteRune(next)
					i++
				default:
					// Lone backslash; escape it and let the next rune
					// be processed normally.
					b.WriteString(`\\`)
				}
			} else {
				b.WriteString(`\\`)
			}
		case r == '"':
			inString = !inString
			b.WriteRune('"')
		case r == '‘' || r == '’':
			b.WriteRune('\'')
		case r == '“' || r == '”':
			if inString {
				b.WriteString(`\"`)
			} else {
				b.WriteRune('"')
			}
		default:
			b.WriteRune(r)
		}
	}

	return b.String()
}

// isEscapeChar reports whether c is a character that may legally follow
// a backslash in a JSON string.
func isEscapeChar(c rune) bool {
	switch c {
	case '"', '\\', '/', 'b', 'f', 'n', 'r', 't', 'u':
		return true
	}
	return false
}
