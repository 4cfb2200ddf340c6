package config

import (
	"os"
	"path/filepath"
	"testing"
)

func loadTestConfig(t *testing.T) *Config {
	t.Helper()
	Reset()
	t.Cleanup(Reset)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	return cfg
}

func TestDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cfg := loadTestConfig(t)

	if cfg.AI.TriageModel == "" || cfg.AI.SynthesisModel == "" {
		t.Error("model defaults should be set")
	}
	if cfg.Gmail.Query != "category:updates is:unread is:important" {
		t.Errorf("unexpected default query: %q", cfg.Gmail.Query)
	}
	if cfg.Pipeline.TokenBudget != 4000 {
		t.Errorf("token budget default = %d", cfg.Pipeline.TokenBudget)
	}
	if cfg.Pipeline.LookbackDays != 7 {
		t.Errorf("lookback default = %d", cfg.Pipeline.LookbackDays)
	}
	if cfg.Pipeline.ScoreThreshold != 0.5 {
		t.Errorf("threshold default = %g", cfg.Pipeline.ScoreThreshold)
	}
	if len(cfg.Pipeline.Topics) == 0 {
		t.Error("topic defaults should be set")
	}
	if cfg.Paths.Database == "" {
		t.Error("database path default should be set")
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("GEMINI_API_KEY", "test-key-123")
	t.Setenv("NEWSBRIEF_RECIPIENT", "me@example.com")
	t.Setenv("NEWSBRIEF_TOKEN_BUDGET", "9000")

	cfg := loadTestConfig(t)

	if cfg.AI.APIKey != "test-key-123" {
		t.Errorf("APIKey = %q", cfg.AI.APIKey)
	}
	if cfg.Gmail.Recipient != "me@example.com" {
		t.Errorf("Recipient = %q", cfg.Gmail.Recipient)
	}
	if cfg.Pipeline.TokenBudget != 9000 {
		t.Errorf("TokenBudget = %d", cfg.Pipeline.TokenBudget)
	}
}

func TestTopicsFromCommaSeparatedEnv(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("NEWSBRIEF_TOPICS", "AI orchestration, fragrance design , arbitrage/DeFi")

	cfg := loadTestConfig(t)

	want := []string{"AI orchestration", "fragrance design", "arbitrage/DeFi"}
	if len(cfg.Pipeline.Topics) != len(want) {
		t.Fatalf("expected %d topics, got %v", len(want), cfg.Pipeline.Topics)
	}
	for i, topic := range want {
		if cfg.Pipeline.Topics[i] != topic {
			t.Errorf("topic %d = %q, want %q", i, cfg.Pipeline.Topics[i], topic)
		}
	}
}

func TestConfigFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	dir := t.TempDir()
	path := filepath.Join(dir, "newsbrief.yaml")
	content := `
gmail:
  query: "label:newsletters is:unread"
pipeline:
  token_budget: 2000
  score_threshold: 0.7
  topics:
    - "  AI orchestration "
    - "fragrance design"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	Reset()
	t.Cleanup(Reset)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Gmail.Query != "label:newsletters is:unread" {
		t.Errorf("Query = %q", cfg.Gmail.Query)
	}
	if cfg.Pipeline.TokenBudget != 2000 {
		t.Errorf("TokenBudget = %d", cfg.Pipeline.TokenBudget)
	}
	if cfg.Pipeline.ScoreThreshold != 0.7 {
		t.Errorf("ScoreThreshold = %g", cfg.Pipeline.ScoreThreshold)
	}
	// List entries are trimmed just like env-delivered ones
	if len(cfg.Pipeline.Topics) != 2 || cfg.Pipeline.Topics[0] != "AI orchestration" {
		t.Errorf("Topics = %v", cfg.Pipeline.Topics)
	}
}

func TestInvalidThresholdRejected(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("NEWSBRIEF_SCORE_THRESHOLD", "1.5")

	Reset()
	t.Cleanup(Reset)
	if _, err := Load(""); err == nil {
		t.Error("threshold above 1 should be rejected")
	}
}
