// Package suggest drives cursor-anchored continuation suggestions:
// short candidate completions generated from the text before the
// cursor, spliced back into the chapter when the writer accepts one.
package suggest

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Mode selects how the separator between existing text and an accepted
// continuation is computed.
type Mode string

const (
	// ModeRaw is plain-text editing. A single space is enough to keep
	// adjacent tokens from merging.
	ModeRaw Mode = "raw"

	// ModeStructured is rendered markdown editing. Paragraphs need a
	// blank line, so the separator works in newlines.
	ModeStructured Mode = "structured"
)

// ParseMode maps a request string onto a Mode. The empty string
// defaults to structured since chapters are markdown.
func ParseMode(s string) (Mode, bool) {
	switch s {
	case "", string(ModeStructured):
		return ModeStructured, true
	case string(ModeRaw):
		return ModeRaw, true
	default:
		return "", false
	}
}

// clampCursor resolves a requested cursor against the content. Anything
// outside [0, len(content)] counts as missing and resolves to the end,
// so a stale or absent cursor continues from where the text stops.
func clampCursor(cursor int, content string) int {
	if cursor < 0 || cursor > len(content) {
		return len(content)
	}
	return cursor
}

// separator decides what goes between the prefix and the accepted text.
//
// At the document start nothing is inserted. In raw mode a single space
// keeps tokens apart unless one side already ends or starts with
// whitespace. In structured mode the boundary must reach a blank line
// (two newlines) before the continuation reads as a new paragraph:
// existing boundary newlines are topped up to two, and a boundary with
// no newlines at all gets a space when both sides touch non-whitespace
// (an inline continuation) or a full paragraph break otherwise.
func separator(prefix, text string, mode Mode) string {
	if prefix == "" {
		return ""
	}

	prefixWS := endsWithWhitespace(prefix)
	textWS := startsWithWhitespace(text)

	if mode == ModeRaw {
		if !prefixWS && !textWS {
			return " "
		}
		return ""
	}

	boundary := trailingNewlines(prefix) + leadingNewlines(text)
	switch {
	case boundary >= 2:
		return ""
	case boundary > 0:
		return strings.Repeat("\n", 2-boundary)
	case !prefixWS && !textWS:
		return " "
	default:
		return "\n\n"
	}
}

// Splice inserts text into content at the cursor with the separator
// policy applied, returning the new content and the cursor position at
// the end of the inserted text.
func Splice(content string, cursor int, text string, mode Mode) (string, int) {
	cursor = clampCursor(cursor, content)
	prefix := content[:cursor]
	suffix := content[cursor:]
	sep := separator(prefix, text, mode)
	return prefix + sep + text + suffix, len(prefix) + len(sep) + len(text)
}

func endsWithWhitespace(s string) bool {
	r, _ := utf8.DecodeLastRuneInString(s)
	return r != utf8.RuneError && unicode.IsSpace(r)
}

func startsWithWhitespace(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	return r != utf8.RuneError && unicode.IsSpace(r)
}

func trailingNewlines(s string) int {
	n := 0
	for i := len(s) - 1; i >= 0 && s[i] == '\n'; i-- {
		n++
	}
	return n
}

func leadingNewlines(s string) int {
	n := 0
	for i := 0; i < len(s) && s[i] == '\n'; i++ {
		n++
	}
	return n
}
