// Package text prepares generated text for delivery over a length-limited
// chat channel.
package text

import (
	"regexp"
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

// TruncationMarker is appended to replies cut short to fit the channel limit.
const TruncationMarker = "\n\n...[truncated]"

// controlCharsRegex matches ASCII control characters (including DEL 0x7F),
// keeping tab, newline and carriage return.
var controlCharsRegex = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F\x7F]`)

// Truncate returns s unchanged when it fits in limit UTF-16 code units, the
// unit Telegram counts message length in. Otherwise it keeps the longest
// prefix that leaves room for TruncationMarker and appends the marker, so the
// result never exceeds limit units. A surrogate pair is never split.
// Truncate is idempotent.
func Truncate(s string, limit int) string {
	if limit < 0 {
		limit = 0
	}
	if UTF16Len(s) <= limit {
		return s
	}

	keep := limit - len(TruncationMarker)
	if keep <= 0 {
		// The marker is ASCII: one byte per unit.
		return TruncationMarker[:limit]
	}

	var b strings.Builder
	b.Grow(len(s))
	n := 0
	for _, r := range s {
		w := runeUnits(r)
		if n+w > keep {
			break
		}
		b.WriteRune(r)
		n += w
	}
	b.WriteString(TruncationMarker)
	return b.String()
}

// UTF16Len reports the length of s in UTF-16 code units. Invalid UTF-8 bytes
// count as U+FFFD, one unit each.
func UTF16Len(s string) int {
	n := 0
	for _, r := range s {
		n += runeUnits(r)
	}
	return n
}

func runeUnits(r rune) int {
	if w := utf16.RuneLen(r); w > 0 {
		return w
	}
	return 1
}

// Clean makes model output safe to send: invalid UTF-8 sequences are replaced
// with U+FFFD and control characters other than \t, \n and \r are dropped.
func Clean(s string) string {
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "�")
	}
	return controlCharsRegex.ReplaceAllString(s, "")
}
