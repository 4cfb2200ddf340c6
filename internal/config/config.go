// Package config loads application configuration from a YAML file,
// environment variables, and an optional .env file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App      App      `mapstructure:"app"`
	AI       AI       `mapstructure:"ai"`
	Gmail    Gmail    `mapstructure:"gmail"`
	Pipeline Pipeline `mapstructure:"pipeline"`
	Paths    Paths    `mapstructure:"paths"`
}

// App holds general application configuration
type App struct {
	Debug   bool   `mapstructure:"debug"`
	DataDir string `mapstructure:"data_dir"`
}

// AI holds Gemini model configuration
type AI struct {
	APIKey         string `mapstructure:"api_key"`
	TriageModel    string `mapstructure:"triage_model"`    // cheap model for triage and chunk summaries
	SynthesisModel string `mapstructure:"synthesis_model"` // higher-quality model for the final briefing
}

// Gmail holds Gmail fetch and delivery configuration
type Gmail struct {
	Query     string `mapstructure:"query"`     // base search query; "after:{epoch}" is appended per run
	Recipient string `mapstructure:"recipient"` // briefing recipient; empty means the authenticated user
	Label     string `mapstructure:"label"`     // label applied to kept messages
}

// Pipeline holds the stage tuning knobs
type Pipeline struct {
	Topics          []string `mapstructure:"topics"`          // high-relevance topics for triage
	TokenBudget     int      `mapstructure:"token_budget"`    // max tokens of combined context before chunking
	LookbackDays    int      `mapstructure:"lookback_days"`   // window for the very first run
	ScoreThreshold  float64  `mapstructure:"score_threshold"` // minimum relevance score to keep an email
	MaxPerSender    int      `mapstructure:"max_per_sender"`  // cap emails per sender, top N by score
	MaxItems        int      `mapstructure:"max_items"`       // cap items fed into synthesis
	TriageBatchSize int      `mapstructure:"triage_batch_size"`
}

// Paths holds locations of credential and state files
type Paths struct {
	Credentials string `mapstructure:"credentials"` // Google OAuth client secrets JSON
	Token       string `mapstructure:"token"`       // cached OAuth token
	Database    string `mapstructure:"database"`    // SQLite state database
}

var globalConfig *Config

// Load loads the configuration from various sources
func Load(configFile string) (*Config, error) {
	if globalConfig != nil {
		return globalConfig, nil
	}

	// Load .env file if it exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: Error loading .env file: %v\n", err)
		}
	}

	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME")
		viper.SetConfigName(".newsbrief")
		viper.SetConfigType("yaml")
	}

	setDefaults()
	bindEnvironmentVariables()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := postProcessConfig(config); err != nil {
		return nil, fmt.Errorf("error post-processing config: %w", err)
	}

	globalConfig = config
	return config, nil
}

// Get returns the global configuration, loading it if necessary
func Get() *Config {
	if globalConfig == nil {
		config, err := Load("")
		if err != nil {
			panic(fmt.Sprintf("Failed to load configuration: %v", err))
		}
		return config
	}
	return globalConfig
}

// Reset clears the cached global configuration. Used by tests.
func Reset() {
	globalConfig = nil
	viper.Reset()
}

// setDefaults sets default configuration values
func setDefaults() {
	dataDir := defaultDataDir()

	viper.SetDefault("app.debug", false)
	viper.SetDefault("app.data_dir", dataDir)

	viper.SetDefault("ai.triage_model", "gemini-flash-lite-latest")
	viper.SetDefault("ai.synthesis_model", "gemini-2.5-flash")

	viper.SetDefault("gmail.query", "category:updates is:unread is:important")
	viper.SetDefault("gmail.label", "Newsletter Briefing")

	viper.SetDefault("pipeline.topics", []string{"AI orchestration", "fragrance design", "arbitrage/DeFi"})
	viper.SetDefault("pipeline.token_budget", 4000)
	viper.SetDefault("pipeline.lookback_days", 7)
	viper.SetDefault("pipeline.score_threshold", 0.5)
	viper.SetDefault("pipeline.max_per_sender", 3)
	viper.SetDefault("pipeline.max_items", 25)
	viper.SetDefault("pipeline.triage_batch_size", 20)

	viper.SetDefault("paths.credentials", "credentials.json")
	viper.SetDefault("paths.token", "token.json")
	viper.SetDefault("paths.database", filepath.Join(dataDir, "state.db"))
}

// bindEnvironmentVariables sets up flexible environment variable binding
func bindEnvironmentVariables() {
	// Gemini API key - support multiple formats
	bindEnvKeys("ai.api_key", []string{
		"GEMINI_API_KEY",
		"GOOGLE_GEMINI_API_KEY",
		"GOOGLE_AI_API_KEY",
	})

	bindEnvKeys("ai.triage_model", []string{"NEWSBRIEF_TRIAGE_MODEL"})
	bindEnvKeys("ai.synthesis_model", []string{"NEWSBRIEF_SYNTHESIS_MODEL"})

	bindEnvKeys("gmail.query", []string{"NEWSBRIEF_GMAIL_QUERY"})
	bindEnvKeys("gmail.recipient", []string{"NEWSBRIEF_RECIPIENT"})
	bindEnvKeys("gmail.label", []string{"NEWSBRIEF_LABEL"})

	bindEnvKeys("pipeline.topics", []string{"NEWSBRIEF_TOPICS"})
	bindEnvKeys("pipeline.token_budget", []string{"NEWSBRIEF_TOKEN_BUDGET"})
	bindEnvKeys("pipeline.lookback_days", []string{"NEWSBRIEF_LOOKBACK_DAYS"})
	bindEnvKeys("pipeline.score_threshold", []string{"NEWSBRIEF_SCORE_THRESHOLD"})
	bindEnvKeys("pipeline.max_per_sender", []string{"NEWSBRIEF_MAX_PER_SENDER"})
	bindEnvKeys("pipeline.max_items", []string{"NEWSBRIEF_MAX_ITEMS"})

	bindEnvKeys("paths.credentials", []string{"NEWSBRIEF_CREDENTIALS"})
	bindEnvKeys("paths.token", []string{"NEWSBRIEF_TOKEN"})
	bindEnvKeys("paths.database", []string{"NEWSBRIEF_DATABASE"})
}

// bindEnvKeys binds the first set environment variable from the list to the config key
func bindEnvKeys(configKey string, envKeys []string) {
	for _, envKey := range envKeys {
		if value := os.Getenv(envKey); value != "" {
			viper.Set(configKey, value)
			return
		}
	}
}

// postProcessConfig normalizes values that arrive as flat strings from the
// environment, and expands relative state paths under the data directory.
func postProcessConfig(config *Config) error {
	// NEWSBRIEF_TOPICS may arrive as one comma-separated string or as a
	// pre-split list with ragged whitespace; normalize both.
	topics := make([]string, 0, len(config.Pipeline.Topics))
	for _, raw := range config.Pipeline.Topics {
		for _, p := range strings.Split(raw, ",") {
			if t := strings.TrimSpace(p); t != "" {
				topics = append(topics, t)
			}
		}
	}
	config.Pipeline.Topics = topics

	if config.Pipeline.TokenBudget <= 0 {
		return fmt.Errorf("pipeline.token_budget must be positive, got %d", config.Pipeline.TokenBudget)
	}
	if config.Pipeline.ScoreThreshold < 0 || config.Pipeline.ScoreThreshold > 1 {
		return fmt.Errorf("pipeline.score_threshold must be in [0,1], got %g", config.Pipeline.ScoreThreshold)
	}
	if config.Pipeline.TriageBatchSize <= 0 {
		config.Pipeline.TriageBatchSize = 20
	}

	return nil
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".newsbrief"
	}
	return filepath.Join(home, ".newsbrief")
}
