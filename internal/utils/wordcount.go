package utils

import (
	"strings"
	"unicode"
)

// CountWords counts prose words in markdown text. Syntax is stripped
// first so formatting characters never inflate the count.
func CountWords(markdown string) int {
	return len(strings.Fields(stripMarkdown(markdown)))
}

// stripMarkdown reduces markdown to plain prose. Complete fenced code
// blocks are dropped; inline markers are removed but their text kept.
func stripMarkdown(markdown string) string {
	var b strings.Builder

	for _, line := range strings.Split(dropCodeFences(markdown), "\n") {
		line = strings.TrimSpace(line)
		if isHorizontalRule(line) {
			continue
		}
		b.WriteString(stripInlineMarkers(stripLinePrefix(line)))
		b.WriteByte(' ')
	}
	return b.String()
}

// dropCodeFences removes complete ```-fenced blocks. An unterminated
// fence is left alone so a half-typed block does not swallow the rest
// of the chapter.
func dropCodeFences(s string) string {
	var b strings.Builder
	for {
		open := strings.Index(s, "```")
		if open < 0 {
			break
		}
		term := strings.Index(s[open+3:], "```")
		if term < 0 {
			break
		}
		b.WriteString(s[:open])
		b.WriteByte(' ')
		s = s[open+3+term+3:]
	}
	b.WriteString(s)
	return b.String()
}

// stripLinePrefix drops heading, blockquote and list markers from the
// start of a line.
func stripLinePrefix(line string) string {
	for strings.HasPrefix(line, ">") {
		line = strings.TrimSpace(line[1:])
	}
	line = strings.TrimSpace(strings.TrimLeft(line, "#"))

	if len(line) > 1 && (line[0] == '-' || line[0] == '*' || line[0] == '+') && line[1] == ' ' {
		return line[2:]
	}
	return stripOrderedMarker(line)
}

// stripOrderedMarker drops "12. " and "12) " style list markers.
func stripOrderedMarker(line string) string {
	i := 0
	for i < len(line) && unicode.IsDigit(rune(line[i])) {
		i++
	}
	if i > 0 && i < len(line) && (line[i] == '.' || line[i] == ')') {
		return strings.TrimSpace(line[i+1:])
	}
	return line
}

func isHorizontalRule(line string) bool {
	if len(line) < 3 {
		return false
	}
	c := line[0]
	if c != '-' && c != '*' && c != '_' {
		return false
	}
	for i := 1; i < len(line); i++ {
		if line[i] != c {
			return false
		}
	}
	return true
}

// stripInlineMarkers removes emphasis and inline-code characters while
// keeping the text they wrap.
func stripInlineMarkers(line string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '*', '_', '`', '~':
			return -1
		}
		return r
	}, line)
}
