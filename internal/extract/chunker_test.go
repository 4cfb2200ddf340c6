package extract

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		input    string
		expected int
	}{
		{"", 0},
		{"abcd", 1},
		{strings.Repeat("a", 400), 100},
		{"héllo wörld!", 3},
	}
	for _, tt := range tests {
		if got := EstimateTokens(tt.input); got != tt.expected {
			t.Errorf("EstimateTokens(%q) = %d, want %d", tt.input, got, tt.expected)
		}
	}
}

func TestSplitChunksEmpty(t *testing.T) {
	if chunks := splitChunks("   ", 100); chunks != nil {
		t.Errorf("expected nil for blank text, got %v", chunks)
	}
}

func TestSplitChunksSingleWindow(t *testing.T) {
	chunks := splitChunks("one two three", 100)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0] != "one two three" {
		t.Errorf("unexpected chunk: %q", chunks[0])
	}
}

func TestSplitChunksOverlap(t *testing.T) {
	words := make([]string, 100)
	for i := range words {
		words[i] = "w" + string(rune('0'+i%10))
	}
	text := strings.Join(words, " ")

	// budget 40 tokens -> 30-word windows, 22-word stride
	chunks := splitChunks(text, 40)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}

	// Every word must appear, and consecutive chunks must overlap
	joined := strings.Join(chunks, " ")
	total := len(strings.Fields(joined))
	if total <= 100 {
		t.Errorf("expected overlap to duplicate words, got %d total words", total)
	}

	for i, chunk := range chunks {
		n := len(strings.Fields(chunk))
		if n > 30 {
			t.Errorf("chunk %d has %d words, window is 30", i, n)
		}
	}
}

func TestCondenseSummarizesChunks(t *testing.T) {
	gen := &fakeGenerator{response: "a chunk summary"}
	cfg := testConfig()
	cfg.Pipeline.TokenBudget = 40

	text := strings.Repeat("lorem ipsum dolor sit amet ", 50)
	out := condense(context.Background(), gen, text, cfg)

	if gen.calls < 2 {
		t.Errorf("expected multiple chunk calls, got %d", gen.calls)
	}
	if !strings.Contains(out, "a chunk summary") {
		t.Errorf("expected summaries in output, got %q", out)
	}
}

func TestCondenseFailureTruncates(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("quota exceeded")}
	cfg := testConfig()
	cfg.Pipeline.TokenBudget = 40

	text := strings.Repeat("lorem ipsum dolor sit amet ", 50)
	out := condense(context.Background(), gen, text, cfg)

	if out == "" {
		t.Fatal("truncation fallback should still produce output")
	}
	if !strings.Contains(out, "...") {
		t.Errorf("truncated chunks should end with ellipsis, got %q", out)
	}
	if !strings.Contains(out, "lorem ipsum") {
		t.Errorf("fallback should carry original text, got %q", out)
	}
}

func TestTruncateRunes(t *testing.T) {
	if got := truncateRunes("héllo", 3); got != "hél" {
		t.Errorf("truncateRunes should cut on rune boundaries, got %q", got)
	}
	if got := truncateRunes("short", 10); got != "short" {
		t.Errorf("short strings pass through, got %q", got)
	}
}
