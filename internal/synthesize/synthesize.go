// Package synthesize implements Stage 3 of the pipeline: turning extracted
// items into one narrative briefing with a stronger model.
package synthesize

import (
	"context"
	"fmt"
	"strings"
	"time"

	"newsbrief/internal/config"
	"newsbrief/internal/core"
	"newsbrief/internal/llm"
	"newsbrief/internal/logger"
)

// itemContentLimit caps per-item content in the synthesis prompt so one
// long newsletter can't crowd out the rest.
const itemContentLimit = 1500

// Generator is the subset of the LLM client used by synthesis.
type Generator interface {
	Generate(ctx context.Context, req llm.Request) (string, error)
}

// Run produces the briefing markdown for the given items. High-relevance
// items are prioritized when the item cap bites. Synthesis failure degrades
// to a bullet-list fallback instead of losing the run.
func Run(ctx context.Context, gen Generator, items []core.ExtractedItem, cfg *config.Config) core.Briefing {
	now := time.Now().UTC()
	briefing := core.Briefing{Subject: BuildSubject(now)}

	if len(items) == 0 {
		briefing.Markdown = emptyBriefing()
		return briefing
	}

	selected := Prioritize(items, cfg.Pipeline.MaxItems)
	if len(selected) < len(items) {
		logger.Infof("Synthesizing %d of %d items (cap %d)", len(selected), len(items), cfg.Pipeline.MaxItems)
	}

	resp, err := gen.Generate(ctx, llm.Request{
		Model:     cfg.AI.SynthesisModel,
		System:    synthesisSystem,
		Prompt:    buildPrompt(selected),
		MaxTokens: 8192,
	})
	if err != nil {
		logger.Errorf(err, "Synthesis failed, falling back to bullet list")
		briefing.Markdown = fallbackBriefing(selected)
		return briefing
	}

	briefing.Markdown = strings.TrimSpace(resp) + sourcesSection(selected)
	return briefing
}

// Prioritize orders items high_relevance first and caps the total count.
// Relative order within each category is preserved.
func Prioritize(items []core.ExtractedItem, maxItems int) []core.ExtractedItem {
	ordered := make([]core.ExtractedItem, 0, len(items))
	for _, item := range items {
		if item.Category == core.CategoryHighRelevance {
			ordered = append(ordered, item)
		}
	}
	for _, item := range items {
		if item.Category != core.CategoryHighRelevance {
			ordered = append(ordered, item)
		}
	}
	if maxItems > 0 && len(ordered) > maxItems {
		ordered = ordered[:maxItems]
	}
	return ordered
}

// BuildSubject formats the briefing subject for the given time:
// "Newsletter Briefing — Morning, March 4, 2025" before 14:00 UTC,
// Evening after.
func BuildSubject(now time.Time) string {
	edition := "Morning"
	if now.UTC().Hour() >= 14 {
		edition = "Evening"
	}
	return fmt.Sprintf("Newsletter Briefing — %s, %s", edition, now.UTC().Format("January 2, 2006"))
}

func buildPrompt(items []core.ExtractedItem) string {
	blocks := make([]string, 0, len(items))
	for i, item := range items {
		linkLine := ""
		if item.LinkURL != "" {
			linkLine = "Link: " + item.LinkURL + "\n"
		}
		blocks = append(blocks, fmt.Sprintf(synthesisItemTemplate,
			i+1, item.SourceName, strings.Join(item.Topics, ", "), item.Category,
			truncateRunes(item.SummaryText, itemContentLimit), linkLine))
	}
	return fmt.Sprintf(synthesisUserTemplate, len(items), strings.Join(blocks, "\n"))
}

// fallbackBriefing renders items as a plain bullet list when the model is
// unavailable. Ugly but nothing is lost.
func fallbackBriefing(items []core.ExtractedItem) string {
	var b strings.Builder
	b.WriteString("## Newsletter Briefing (Fallback)\n\n")
	b.WriteString("Synthesis was unavailable for this run; here are the raw items.\n\n")
	for _, item := range items {
		b.WriteString(fmt.Sprintf("- **%s** — %s\n", item.SourceName, truncateRunes(item.SummaryText, 300)))
		if item.LinkURL != "" {
			b.WriteString(fmt.Sprintf("  - %s\n", item.LinkURL))
		}
	}
	return b.String() + sourcesSection(items)
}

func emptyBriefing() string {
	return "## No Updates Today\n\nNo newsletters passed triage this run. Enjoy the quiet.\n"
}

// sourcesSection appends Gmail deep links back to the source emails, one
// per message, deduped.
func sourcesSection(items []core.ExtractedItem) string {
	var b strings.Builder
	seen := make(map[string]bool)
	for _, item := range items {
		if item.EmailID == "" || seen[item.EmailID] {
			continue
		}
		seen[item.EmailID] = true
		b.WriteString(fmt.Sprintf("- [%s — %s](https://mail.google.com/mail/u/0/#inbox/%s)\n",
			item.SourceName, item.EmailSubject, item.EmailID))
	}
	if b.Len() == 0 {
		return ""
	}
	return "\n\n## Sources\n\n" + b.String()
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
