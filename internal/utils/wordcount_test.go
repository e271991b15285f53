package utils

import "testing"

func TestCountWords(t *testing.T) {
	tests := []struct {
		name     string
		markdown string
		want     int
	}{
		{"empty", "", 0},
		{"whitespace only", "  \n\t \n", 0},
		{"plain sentence", "The keeper climbed the winding stair.", 6},
		{"heading marker stripped", "# Chapter One\n\nIt began at dusk.", 6},
		{"emphasis kept as words", "She was *very* sure, **completely** sure.", 6},
		{"inline code kept", "type `exit` to leave", 4},
		{"fenced block dropped", "before\n```\nfunc main() {}\n```\nafter", 2},
		{"unterminated fence kept", "before\n```\nstill counted here", 4},
		{"bullet list", "- one fish\n- two fish\n* red fish", 6},
		{"ordered list", "1. first step\n2. second step\n12) twelfth step", 6},
		{"blockquote", "> quoted words here", 3},
		{"nested blockquote", ">> deep quote", 2},
		{"horizontal rule dropped", "above\n\n---\n\nbelow", 2},
		{"year is not a list marker", "1984 was the year", 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CountWords(tt.markdown); got != tt.want {
				t.Errorf("CountWords(%q) = %d, want %d", tt.markdown, got, tt.want)
			}
		})
	}
}
