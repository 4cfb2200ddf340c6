package synthesize

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"newsbrief/internal/config"
	"newsbrief/internal/core"
	"newsbrief/internal/llm"
)

type fakeGenerator struct {
	response string
	err      error
	prompts  []string
}

func (f *fakeGenerator) Generate(_ context.Context, req llm.Request) (string, error) {
	f.prompts = append(f.prompts, req.Prompt)
	return f.response, f.err
}

func testConfig() *config.Config {
	return &config.Config{
		AI:       config.AI{SynthesisModel: "test-model"},
		Pipeline: config.Pipeline{MaxItems: 25},
	}
}

func item(id, source, category string) core.ExtractedItem {
	return core.ExtractedItem{
		SourceName:   source,
		Category:     category,
		SummaryText:  "content from " + source,
		EmailID:      id,
		EmailSubject: source + " edition",
	}
}

func TestBuildSubject(t *testing.T) {
	morning := time.Date(2025, 3, 4, 9, 0, 0, 0, time.UTC)
	if got := BuildSubject(morning); got != "Newsletter Briefing — Morning, March 4, 2025" {
		t.Errorf("unexpected morning subject: %q", got)
	}

	evening := time.Date(2025, 3, 4, 19, 30, 0, 0, time.UTC)
	if got := BuildSubject(evening); got != "Newsletter Briefing — Evening, March 4, 2025" {
		t.Errorf("unexpected evening subject: %q", got)
	}

	boundary := time.Date(2025, 3, 4, 14, 0, 0, 0, time.UTC)
	if got := BuildSubject(boundary); !strings.Contains(got, "Evening") {
		t.Errorf("14:00 UTC should be Evening, got %q", got)
	}
}

func TestPrioritize(t *testing.T) {
	items := []core.ExtractedItem{
		item("1", "A", core.CategoryGeneralInfo),
		item("2", "B", core.CategoryHighRelevance),
		item("3", "C", core.CategoryGeneralInfo),
		item("4", "D", core.CategoryHighRelevance),
	}

	ordered := Prioritize(items, 3)
	if len(ordered) != 3 {
		t.Fatalf("expected 3 items, got %d", len(ordered))
	}
	if ordered[0].EmailID != "2" || ordered[1].EmailID != "4" {
		t.Errorf("high_relevance should come first, got %s, %s", ordered[0].EmailID, ordered[1].EmailID)
	}
	if ordered[2].EmailID != "1" {
		t.Errorf("general_info order should be preserved, got %s", ordered[2].EmailID)
	}
}

func TestPrioritizeNoCap(t *testing.T) {
	items := []core.ExtractedItem{
		item("1", "A", core.CategoryGeneralInfo),
		item("2", "B", core.CategoryGeneralInfo),
	}
	if got := Prioritize(items, 0); len(got) != 2 {
		t.Errorf("cap of 0 should keep everything, got %d", len(got))
	}
}

func TestRunEmpty(t *testing.T) {
	gen := &fakeGenerator{response: "should not be called"}

	briefing := Run(context.Background(), gen, nil, testConfig())
	if len(gen.prompts) != 0 {
		t.Error("empty input should not call the model")
	}
	if !strings.Contains(briefing.Markdown, "No Updates Today") {
		t.Errorf("expected empty briefing, got %q", briefing.Markdown)
	}
	if briefing.Subject == "" {
		t.Error("empty briefing still needs a subject")
	}
}

func TestRunSuccess(t *testing.T) {
	gen := &fakeGenerator{response: "## AI\n\nThe briefing narrative."}
	items := []core.ExtractedItem{item("msg-1", "Stratechery", core.CategoryHighRelevance)}

	briefing := Run(context.Background(), gen, items, testConfig())
	if !strings.Contains(briefing.Markdown, "The briefing narrative.") {
		t.Errorf("expected model output, got %q", briefing.Markdown)
	}
	if !strings.Contains(briefing.Markdown, "## Sources") {
		t.Error("briefing should include a sources section")
	}
	if !strings.Contains(briefing.Markdown, "https://mail.google.com/mail/u/0/#inbox/msg-1") {
		t.Error("sources should deep link back to Gmail")
	}
	if len(gen.prompts) != 1 || !strings.Contains(gen.prompts[0], "content from Stratechery") {
		t.Error("prompt should carry item content")
	}
}

func TestRunFallbackOnError(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("model unavailable")}
	items := []core.ExtractedItem{
		item("1", "The Diff", core.CategoryGeneralInfo),
	}
	items[0].LinkURL = "https://example.com/article"

	briefing := Run(context.Background(), gen, items, testConfig())
	if !strings.Contains(briefing.Markdown, "Fallback") {
		t.Errorf("expected fallback briefing, got %q", briefing.Markdown)
	}
	if !strings.Contains(briefing.Markdown, "The Diff") {
		t.Error("fallback should list item sources")
	}
	if !strings.Contains(briefing.Markdown, "https://example.com/article") {
		t.Error("fallback should keep item links")
	}
}

func TestSourcesSectionDedupes(t *testing.T) {
	items := []core.ExtractedItem{
		item("same-id", "A", core.CategoryGeneralInfo),
		item("same-id", "A", core.CategoryGeneralInfo),
		item("other-id", "B", core.CategoryGeneralInfo),
	}

	section := sourcesSection(items)
	if strings.Count(section, "same-id") != 1 {
		t.Errorf("duplicate email IDs should appear once, got %q", section)
	}
	if !strings.Contains(section, "other-id") {
		t.Error("distinct IDs should all appear")
	}
}

func TestSourcesSectionEmpty(t *testing.T) {
	if section := sourcesSection(nil); section != "" {
		t.Errorf("no items should yield no section, got %q", section)
	}
}
