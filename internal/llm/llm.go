// Package llm wraps the Gemini API for the triage, chunk-summary, and
// synthesis calls made by the pipeline.
package llm

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"google.golang.org/genai"

	"newsbrief/internal/logger"
)

const (
	maxRetries   = 3
	initialDelay = 2 * time.Second
)

// Client represents a client for interacting with the Gemini API.
type Client struct {
	apiKey  string
	gClient *genai.Client
}

// Request describes a single text generation call.
type Request struct {
	Model     string // model name, e.g. the configured triage or synthesis model
	System    string // system instruction (optional)
	Prompt    string // user prompt
	MaxTokens int32  // maximum output tokens; 0 uses the model default
}

// NewClient creates a new Gemini client.
func NewClient(ctx context.Context, apiKey string) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required. Set GEMINI_API_KEY environment variable or ai.api_key in config file.\nGet your API key from: https://makersuite.google.com/app/apikey")
	}

	gClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &Client{apiKey: apiKey, gClient: gClient}, nil
}

// Generate performs a text generation call, retrying rate-limited requests
// with exponential backoff.
func (c *Client) Generate(ctx context.Context, req Request) (string, error) {
	if req.Prompt == "" {
		return "", fmt.Errorf("prompt cannot be empty")
	}
	if req.Model == "" {
		return "", fmt.Errorf("model name cannot be empty")
	}

	contents := []*genai.Content{{
		Parts: []*genai.Part{{Text: req.Prompt}},
		Role:  "user",
	}}

	config := &genai.GenerateContentConfig{}
	if req.MaxTokens > 0 {
		config.MaxOutputTokens = req.MaxTokens
	}
	if req.System != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: req.System}},
		}
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(math.Pow(2, float64(attempt-1))) * initialDelay
			logger.Debugf("rate limited by Gemini, retrying in %s (attempt %d/%d)", delay, attempt+1, maxRetries)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		resp, err := c.gClient.Models.GenerateContent(ctx, req.Model, contents, config)
		if err != nil {
			if isRateLimited(err) {
				lastErr = err
				continue
			}
			return "", fmt.Errorf("failed to generate content: %w", err)
		}

		text := resp.Text()
		if text == "" {
			return "", fmt.Errorf("empty response from model %s", req.Model)
		}
		return text, nil
	}

	return "", fmt.Errorf("rate limited after %d attempts: %w", maxRetries, lastErr)
}

// isRateLimited reports whether the error looks like a quota or availability
// error worth retrying.
func isRateLimited(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "RESOURCE_EXHAUSTED") ||
		strings.Contains(msg, "rateLimitExceeded") ||
		strings.Contains(msg, "503")
}
