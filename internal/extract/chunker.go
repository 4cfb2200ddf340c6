package extract

import (
	"context"
	"strings"
	"unicode/utf8"

	"newsbrief/internal/config"
	"newsbrief/internal/llm"
	"newsbrief/internal/logger"
)

// charsPerToken is the rough ratio used to estimate token counts for
// English prose without pulling in a tokenizer.
const charsPerToken = 4

const chunkSummarySystem = `You are a concise summarizer. Summarize the given text in 3-5 sentences, preserving key names, numbers, dates, and URLs. Output only the summary.`

// EstimateTokens approximates the token count of a string.
func EstimateTokens(text string) int {
	return utf8.RuneCountInString(text) / charsPerToken
}

// condense reduces oversized content to fit the token budget: the text is
// split into overlapping windows and each window is summarized by the model.
// A window whose summary fails falls back to truncation so partial output
// still reaches synthesis.
func condense(ctx context.Context, gen Generator, text string, cfg *config.Config) string {
	chunks := splitChunks(text, cfg.Pipeline.TokenBudget)
	logger.Debugf("Condensing %d tokens across %d chunks", EstimateTokens(text), len(chunks))

	summaries := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		resp, err := gen.Generate(ctx, llm.Request{
			Model:     cfg.AI.TriageModel,
			System:    chunkSummarySystem,
			Prompt:    chunk,
			MaxTokens: 512,
		})
		if err != nil {
			logger.Warnf("Chunk %d/%d summary failed, truncating: %v", i+1, len(chunks), err)
			resp = truncateRunes(chunk, 500) + "..."
		}
		summaries = append(summaries, strings.TrimSpace(resp))
	}

	return strings.Join(summaries, "\n\n")
}

// splitChunks breaks text into word-aligned windows of roughly budget
// tokens each, overlapping by 25% so sentences cut at a boundary still
// appear whole in one window.
func splitChunks(text string, budgetTokens int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	// ~0.75 words per token for English prose
	windowWords := budgetTokens * 3 / 4
	if windowWords < 1 {
		windowWords = 1
	}
	stride := windowWords * 3 / 4
	if stride < 1 {
		stride = 1
	}

	var chunks []string
	for start := 0; start < len(words); start += stride {
		end := start + windowWords
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, strings.Join(words[start:end], " "))
		if end == len(words) {
			break
		}
	}
	return chunks
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
