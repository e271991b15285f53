package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"inkwell/internal/config"
	"inkwell/internal/provider"
)

const (
	titleMaxTokens = 24
	titleSourceCap = 2000
	titleTimeout   = 15 * time.Second
)

const titleSystem = `You name chat sessions in a fiction-writing workspace. Given the opening message of a conversation, answer with a short descriptive title of at most six words. Output only the title: no quotes, no trailing punctuation.`

// Titler names sessions after their first exchange using the
// editing-role provider binding.
type Titler struct {
	gateway provider.Gateway
	logger  *slog.Logger
}

// NewTitler creates a session titler.
func NewTitler(gateway provider.Gateway, logger *slog.Logger) *Titler {
	return &Titler{gateway: gateway, logger: logger}
}

// Title produces a session name from the opening message text.
func (t *Titler) Title(ctx context.Context, source string) (string, error) {
	if strings.TrimSpace(source) == "" {
		return "", errors.New("nothing to summarize")
	}

	ctx, cancel := context.WithTimeout(ctx, titleTimeout)
	defer cancel()

	raw, err := t.gateway.Complete(ctx, provider.CompleteRequest{
		System:    titleSystem,
		Prompt:    clip(source, titleSourceCap),
		MaxTokens: titleMaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("title completion: %w", err)
	}

	name := sanitizeTitle(raw)
	if name == "" {
		return "", errors.New("provider returned an empty title")
	}
	return name, nil
}

// sanitizeTitle strips the quoting and whitespace models tend to add
// and enforces the column bound.
func sanitizeTitle(raw string) string {
	name := strings.TrimSpace(raw)
	if i := strings.IndexByte(name, '\n'); i >= 0 {
		name = name[:i]
	}
	name = strings.Trim(name, "\"'`")
	name = strings.TrimSpace(strings.TrimSuffix(name, "."))
	if len(name) > config.MaxSessionNameLength {
		name = strings.TrimSpace(clip(name, config.MaxSessionNameLength))
	}
	return name
}

// clip truncates to at most n bytes on a rune boundary.
func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
