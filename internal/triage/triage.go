// Package triage implements Stage 1 of the pipeline: batched relevance
// classification of fetched emails with a cheap model.
package triage

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"newsbrief/internal/config"
	"newsbrief/internal/core"
	"newsbrief/internal/llm"
	"newsbrief/internal/logger"
)

// previewLimit caps the preview text included per email in the prompt.
const previewLimit = 600

// Generator is the subset of the LLM client used by triage.
type Generator interface {
	Generate(ctx context.Context, req llm.Request) (string, error)
}

// classification mirrors one object in the model's JSON array response.
// RelevanceScore is a pointer so an omitted field can be told apart from
// an explicit 0.0.
type classification struct {
	Category       string   `json:"category"`
	RelevanceScore *float64 `json:"relevance_score"`
	Topics         []string `json:"topics"`
	Reason         string   `json:"reason"`
}

// Run classifies all emails in batches and returns every triage result,
// kept and discarded alike. Filtering happens in Keep.
func Run(ctx context.Context, gen Generator, emails []core.Email, cfg *config.Config) []core.TriageResult {
	if len(emails) == 0 {
		return nil
	}

	batchSize := cfg.Pipeline.TriageBatchSize
	var all []core.TriageResult
	for start := 0; start < len(emails); start += batchSize {
		end := start + batchSize
		if end > len(emails) {
			end = len(emails)
		}
		all = append(all, runBatch(ctx, gen, emails[start:end], cfg)...)
	}
	return all
}

// Keep filters triage results down to the kept set: non-discarded items at
// or above the score threshold, capped per sender.
func Keep(results []core.TriageResult, cfg *config.Config) []core.TriageResult {
	kept := make([]core.TriageResult, 0, len(results))
	for _, r := range results {
		if r.Category != core.CategoryDiscard && r.RelevanceScore >= cfg.Pipeline.ScoreThreshold {
			kept = append(kept, r)
		}
	}

	kept = capPerSender(kept, cfg.Pipeline.MaxPerSender)

	high, general := 0, 0
	for _, r := range kept {
		switch r.Category {
		case core.CategoryHighRelevance:
			high++
		case core.CategoryGeneralInfo:
			general++
		}
	}
	logger.Infof("Triage: %d/%d emails kept (%d high_relevance, %d general_info, %d discarded)",
		len(kept), len(results), high, general, len(results)-len(kept))

	return kept
}

// runBatch sends one batch of emails to the triage model. On API failure
// every email defaults to general_info so nothing is silently dropped.
func runBatch(ctx context.Context, gen Generator, batch []core.Email, cfg *config.Config) []core.TriageResult {
	blocks := make([]string, 0, len(batch))
	for i, email := range batch {
		preview := email.Snippet
		if preview == "" {
			preview = email.BodyText
		}
		blocks = append(blocks, fmt.Sprintf(triageEmailTemplate,
			i+1, email.Subject, email.Sender, truncate(preview, previewLimit)))
	}

	resp, err := gen.Generate(ctx, llm.Request{
		Model:     cfg.AI.TriageModel,
		System:    fmt.Sprintf(triageSystemTemplate, strings.Join(cfg.Pipeline.Topics, ", ")),
		Prompt:    fmt.Sprintf(triageUserTemplate, len(batch), strings.Join(blocks, "\n")),
		MaxTokens: 4096,
	})
	if err != nil {
		logger.Errorf(err, "Triage API call failed for batch of %d", len(batch))
		results := make([]core.TriageResult, 0, len(batch))
		for _, e := range batch {
			results = append(results, core.TriageResult{
				Email:          e,
				Category:       core.CategoryGeneralInfo,
				RelevanceScore: 0.5,
				Reason:         "Triage failed; defaulting to general_info",
			})
		}
		return results
	}

	results := parseResponse(resp, batch)
	for _, r := range results {
		logger.Debugf("  [%s] score=%.2f subject=%q reason=%q",
			r.Category, r.RelevanceScore, truncate(r.Email.Subject, 60), truncate(r.Reason, 80))
	}
	return results
}

// parseResponse decodes the model's JSON array into triage results. Parse
// failures and missing entries default to discard so transactional emails
// don't leak through.
func parseResponse(raw string, batch []core.Email) []core.TriageResult {
	text := stripCodeFences(raw)

	var items []classification
	if err := json.Unmarshal([]byte(text), &items); err != nil {
		logger.Warnf("Failed to parse triage JSON, treating batch as discard: %v", err)
		results := make([]core.TriageResult, 0, len(batch))
		for _, e := range batch {
			results = append(results, core.TriageResult{
				Email:    e,
				Category: core.CategoryDiscard,
				Reason:   "JSON parse failed; defaulting to discard",
			})
		}
		return results
	}

	results := make([]core.TriageResult, 0, len(batch))
	for i, email := range batch {
		if i >= len(items) {
			results = append(results, core.TriageResult{
				Email:    email,
				Category: core.CategoryDiscard,
				Reason:   "Missing from model output; defaulting to discard",
			})
			continue
		}
		item := items[i]
		if item.Category == "" {
			item.Category = core.CategoryGeneralInfo
		}
		score := 0.5
		if item.RelevanceScore != nil {
			score = *item.RelevanceScore
		}
		results = append(results, core.TriageResult{
			Email:          email,
			Category:       item.Category,
			RelevanceScore: score,
			Topics:         item.Topics,
			Reason:         item.Reason,
		})
	}
	return results
}

// stripCodeFences removes a surrounding markdown code fence, if present.
func stripCodeFences(raw string) string {
	text := strings.TrimSpace(raw)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	lines := strings.Split(text, "\n")
	if len(lines) < 2 {
		return text
	}
	return strings.TrimSpace(strings.Join(lines[1:len(lines)-1], "\n"))
}

var senderAddrRegex = regexp.MustCompile(`<([^>]+)>`)

// NormalizeSender extracts a canonical sender key from a From header:
// `Newsletter Name <noreply@example.com>` becomes `noreply@example.com`.
func NormalizeSender(sender string) string {
	if m := senderAddrRegex.FindStringSubmatch(sender); m != nil {
		return strings.ToLower(strings.TrimSpace(m[1]))
	}
	return strings.ToLower(strings.TrimSpace(sender))
}

// capPerSender keeps only the top maxPerSender results per sender, by score.
func capPerSender(results []core.TriageResult, maxPerSender int) []core.TriageResult {
	if maxPerSender <= 0 {
		return results
	}

	bySender := make(map[string][]core.TriageResult)
	var order []string
	for _, r := range results {
		key := NormalizeSender(r.Email.Sender)
		if _, seen := bySender[key]; !seen {
			order = append(order, key)
		}
		bySender[key] = append(bySender[key], r)
	}

	var kept []core.TriageResult
	for _, key := range order {
		group := bySender[key]
		if len(group) > maxPerSender {
			sort.SliceStable(group, func(i, j int) bool {
				return group[i].RelevanceScore > group[j].RelevanceScore
			})
			logger.Debugf("Sender %q has %d emails; keeping top %d", key, len(group), maxPerSender)
			group = group[:maxPerSender]
		}
		kept = append(kept, group...)
	}
	return kept
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
