package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Provider represents the LLM provider type
type Provider string

const (
	ProviderOpenAI     Provider = "openai"
	ProviderAnthropic  Provider = "anthropic"
	ProviderPerplexity Provider = "perplexity"
)

// ClientConfig holds LLM client configuration
type ClientConfig struct {
	Provider    Provider      `json:"provider"`
	APIKey      string        `json:"api_key"`
	Model       string        `json:"model"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
	Timeout     time.Duration `json:"timeout"`
	MaxRetries  int           `json:"max_retries"`
	RetryDelay  time.Duration `json:"retry_delay"`
}

// DefaultClientConfig returns default configuration for the provider
func DefaultClientConfig(provider Provider) *ClientConfig {
	cfg := &ClientConfig{
		Provider:    provider,
		MaxTokens:   2000,
		Temperature: 0.2,
		Timeout:     30 * time.Second,
		MaxRetries:  3,
		RetryDelay:  2 * time.Second,
	}
	switch provider {
	case ProviderOpenAI:
		cfg.Model = "gpt-4o"
	case ProviderAnthropic:
		cfg.Model = "claude-3-5-sonnet-20241022"
	case ProviderPerplexity:
		cfg.Model = "sonar-pro"
	}
	return cfg
}

// Client is the LLM API client
type Client struct {
	config     *ClientConfig
	httpClient *http.Client

	// Endpoint overrides for tests.
	openAIURL     string
	anthropicURL  string
	perplexityURL string
}

// NewClient creates a new LLM client
func NewClient(config *ClientConfig) *Client {
	if config == nil {
		config = DefaultClientConfig(ProviderOpenAI)
	}
	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		openAIURL:     "https://api.openai.com/v1/chat/completions",
		anthropicURL:  "https://api.anthropic.com/v1/messages",
		perplexityURL: "https://api.perplexity.ai/chat/completions",
	}
}

// Message represents a chat message
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// anthropicRequest represents an Anthropic messages API request
type anthropicRequest struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature,omitempty"`
	System      string    `json:"system,omitempty"`
	Messages    []Message `json:"messages"`
}

// anthropicResponse represents an Anthropic messages API response
type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Model string `json:"model"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// chatRequest represents an OpenAI-style chat completion request.
// Perplexity uses the same shape.
type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
}

// chatResponse represents an OpenAI-style chat completion response
type chatResponse struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Complete sends a completion request to the LLM. Transient failures
// (connection errors, 429, 5xx) are retried up to MaxRetries times.
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	var lastErr error

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(c.config.RetryDelay):
			}
		}

		text, retryable, err := c.completeOnce(ctx, systemPrompt, userPrompt)
		if err == nil {
			return text, nil
		}

		lastErr = err
		if !retryable {
			return "", err
		}
	}

	return "", fmt.Errorf("failed after %d retries: %w", c.config.MaxRetries, lastErr)
}

func (c *Client) completeOnce(ctx context.Context, systemPrompt, userPrompt string) (string, bool, error) {
	switch c.config.Provider {
	case ProviderAnthropic:
		return c.completeAnthropic(ctx, systemPrompt, userPrompt)
	case ProviderOpenAI:
		return c.completeChat(ctx, c.openAIURL, systemPrompt, userPrompt)
	case ProviderPerplexity:
		return c.completeChat(ctx, c.perplexityURL, systemPrompt, userPrompt)
	default:
		return "", false, fmt.Errorf("unsupported provider: %s", c.config.Provider)
	}
}

// completeAnthropic sends a request to the Anthropic messages API
func (c *Client) completeAnthropic(ctx context.Context, systemPrompt, userPrompt string) (string, bool, error) {
	req := anthropicRequest{
		Model:       c.config.Model,
		MaxTokens:   c.config.MaxTokens,
		Temperature: c.config.Temperature,
		System:      systemPrompt,
		Messages: []Message{
			{Role: "user", Content: userPrompt},
		},
	}

	headers := map[string]string{
		"x-api-key":         c.config.APIKey,
		"anthropic-version": "2023-06-01",
	}

	respBody, retryable, err := c.post(ctx, c.anthropicURL, req, headers)
	if err != nil {
		return "", retryable, err
	}

	var resp anthropicResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return "", false, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if resp.Error != nil {
		return "", false, fmt.Errorf("API error: %s - %s", resp.Error.Type, resp.Error.Message)
	}
	if len(resp.Content) == 0 {
		return "", false, fmt.Errorf("empty response from %s", c.config.Provider)
	}

	return resp.Content[0].Text, false, nil
}

// completeChat sends an OpenAI-compatible chat completion request
func (c *Client) completeChat(ctx context.Context, endpoint, systemPrompt, userPrompt string) (string, bool, error) {
	req := chatRequest{
		Model: c.config.Model,
		Messages: []Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		MaxTokens:   c.config.MaxTokens,
		Temperature: c.config.Temperature,
	}

	headers := map[string]string{
		"Authorization": "Bearer " + c.config.APIKey,
	}

	respBody, retryable, err := c.post(ctx, endpoint, req, headers)
	if err != nil {
		return "", retryable, err
	}

	var resp chatResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return "", false, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if resp.Error != nil {
		return "", false, fmt.Errorf("API error: %s - %s", resp.Error.Type, resp.Error.Message)
	}
	if len(resp.Choices) == 0 {
		return "", false, fmt.Errorf("empty response from %s", c.config.Provider)
	}

	return resp.Choices[0].Message.Content, false, nil
}

// post sends the request and reports whether a failure is worth retrying.
func (c *Client) post(ctx context.Context, endpoint string, payload interface{}, headers map[string]string) ([]byte, bool, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, false, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, false, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		// Connection-level failures are transient.
		return nil, true, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return nil, true, fmt.Errorf("API error %d: %s", resp.StatusCode, string(respBody))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, false, fmt.Errorf("API error %d: %s", resp.StatusCode, string(respBody))
	}

	return respBody, false, nil
}

// Model returns the configured model name
func (c *Client) Model() string {
	return c.config.Model
}

// IsConfigured checks if the client is properly configured
func (c *Client) IsConfigured() bool {
	return c.config.APIKey != ""
}
