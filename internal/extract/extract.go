// Package extract implements Stage 2 of the pipeline: converting triaged
// emails (and optionally one followed link) into bounded text ready for
// synthesis.
package extract

import (
	"context"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"newsbrief/internal/config"
	"newsbrief/internal/core"
	"newsbrief/internal/llm"
	"newsbrief/internal/logger"
)

// Generator is the subset of the LLM client used for chunk summaries.
type Generator interface {
	Generate(ctx context.Context, req llm.Request) (string, error)
}

// invisibleUnicode matches invisible characters that pollute extracted
// newsletter text: zero-width spaces/joiners, direction marks, soft hyphens,
// invisible operators, BOM, non-breaking spaces, and misc filler codepoints.
var invisibleUnicode = regexp.MustCompile("[" +
	"\u200b\u200c\u200d\u200e\u200f" + // zero-width spaces, joiners, direction marks
	"\u00ad" + // soft hyphen
	"\u2060\u2061\u2062\u2063\u2064" + // invisible operators
	"\ufeff" + // BOM / zero-width no-break space
	"\u00a0" + // non-breaking space
	"\u034f\u061c\u115f\u1160\u17b4\u17b5\uffa0" + // misc invisible
	"]")

var blankRuns = regexp.MustCompile(`\n{3,}`)

// Run processes triaged emails sequentially: strip HTML, follow the best
// link for high-relevance items, condense oversized content. A failed item
// falls back to its snippet rather than aborting the run.
func Run(ctx context.Context, gen Generator, triaged []core.TriageResult, cfg *config.Config) []core.ExtractedItem {
	fetcher := newLinkFetcher()

	items := make([]core.ExtractedItem, 0, len(triaged))
	for _, result := range triaged {
		item, err := extractSingle(ctx, gen, fetcher, result, cfg)
		if err != nil {
			logger.Errorf(err, "Extraction failed for %q; using snippet fallback", result.Email.Subject)
			item = core.ExtractedItem{
				SourceName:   SourceName(result.Email.Sender),
				Topics:       result.Topics,
				Category:     result.Category,
				SummaryText:  result.Email.Snippet,
				EmailID:      result.Email.ID,
				EmailSubject: result.Email.Subject,
			}
		}
		items = append(items, item)
	}

	logger.Infof("Extracted %d items", len(items))
	return items
}

func extractSingle(ctx context.Context, gen Generator, fetcher *linkFetcher, result core.TriageResult, cfg *config.Config) (core.ExtractedItem, error) {
	email := result.Email

	body := email.BodyText
	if email.BodyHTML != "" {
		stripped, err := StripHTML(email.BodyHTML)
		if err != nil {
			return core.ExtractedItem{}, err
		}
		body = stripped
	}

	// High-relevance items get one followed link; a failed fetch just
	// leaves the email body on its own.
	var linkURL, linkContent string
	if result.Category == core.CategoryHighRelevance {
		if best := FindBestLink(email.BodyHTML); best != "" {
			linkURL = best
			linkContent = fetcher.fetch(ctx, best)
		}
	}

	combined := body
	if linkContent != "" {
		combined += "\n\n--- Linked Article ---\n\n" + linkContent
	}
	if strings.TrimSpace(combined) == "" {
		combined = email.Snippet
	}

	summary := combined
	if EstimateTokens(combined) > cfg.Pipeline.TokenBudget {
		summary = condense(ctx, gen, combined, cfg)
	}

	return core.ExtractedItem{
		SourceName:   SourceName(email.Sender),
		Topics:       result.Topics,
		Category:     result.Category,
		SummaryText:  summary,
		LinkURL:      linkURL,
		FullContent:  combined,
		EmailID:      email.ID,
		EmailSubject: email.Subject,
	}, nil
}

// StripHTML converts an HTML email body to clean plain text.
func StripHTML(rawHTML string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return "", err
	}

	doc.Find("script, style, head, meta, link").Remove()

	var b strings.Builder
	for _, node := range doc.Selection.Nodes {
		collectText(&b, node)
	}

	return CleanText(b.String()), nil
}

// collectText walks the node tree depth-first, emitting each text node on
// its own line so paragraph structure survives table-based email layouts.
func collectText(b *strings.Builder, n *html.Node) {
	if n.Type == html.TextNode {
		if text := strings.TrimSpace(n.Data); text != "" {
			b.WriteString(text)
			b.WriteString("\n")
		}
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(b, c)
	}
}

// CleanText normalizes extracted text: invisible unicode removed, blank
// runs collapsed, surrounding whitespace trimmed.
func CleanText(text string) string {
	text = invisibleUnicode.ReplaceAllString(text, " ")

	// Per-line trim so indented HTML source doesn't leave ragged output
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	text = strings.Join(lines, "\n")

	text = blankRuns.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

var senderNameRegex = regexp.MustCompile(`^"?([^"<]+)"?\s*<`)

// SourceName extracts a human-readable source name from a From header:
// `Newsletter Name <noreply@example.com>` becomes `Newsletter Name`.
func SourceName(sender string) string {
	if m := senderNameRegex.FindStringSubmatch(sender); m != nil {
		return strings.TrimSpace(m[1])
	}
	if at := strings.Index(sender, "@"); at > 0 {
		return sender[:at]
	}
	return sender
}
