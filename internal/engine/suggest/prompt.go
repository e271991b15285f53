package suggest

import (
	"fmt"
	"unicode/utf8"
)

const (
	// maxPrefixBytes caps how much chapter text rides along as model
	// context. The tail of the prefix matters most for a continuation.
	maxPrefixBytes = 6000

	// maxContinuationTokens keeps candidates short enough to read at a
	// glance next to the cursor.
	maxContinuationTokens = 200
)

const continuationSystem = `You are a fiction co-writer. The user sends the text of a chapter in progress, cut off exactly at their cursor.

Write a short continuation of one or two sentences that picks up at the precise point the text stops. Match the voice, tense and pacing already on the page. If the text is empty, write an opening line instead.

Output only the continuation itself: no preamble, no surrounding quotation marks, no commentary.`

// continuationPrompt assembles the user prompt from the chapter title
// and the tail of the prefix.
func continuationPrompt(chapterTitle, prefix string) string {
	tail := tailString(prefix, maxPrefixBytes)
	if chapterTitle == "" {
		return tail
	}
	return fmt.Sprintf("Chapter: %s\n\n%s", chapterTitle, tail)
}

// tailString returns the last n bytes of s, advanced to a rune
// boundary so multibyte characters are never split.
func tailString(s string, n int) string {
	if len(s) <= n {
		return s
	}
	i := len(s) - n
	for i < len(s) && !utf8.RuneStart(s[i]) {
		i++
	}
	return s[i:]
}
