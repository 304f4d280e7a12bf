// Package llm generates narrative strategy commentary from market structure
// snapshots using hosted language models.
package llm

import (
	"context"
	"fmt"
	"time"

	"mvpforex/internal/analysis"
	"mvpforex/internal/logging"
)

// StrategyAnalysis is the result of one model invocation.
type StrategyAnalysis struct {
	Status      string  `json:"status"`
	Analysis    string  `json:"analysis"`
	Model       string  `json:"model"`
	Provider    string  `json:"provider"`
	ElapsedTime float64 `json:"elapsed_time"`
}

// StrategyAnalyzer fans strategy prompts out to the configured providers.
type StrategyAnalyzer struct {
	clients map[Provider]*Client
	logger  *logging.Logger
}

// NewStrategyAnalyzer creates an analyzer over the given clients.
func NewStrategyAnalyzer(clients map[Provider]*Client, logger *logging.Logger) *StrategyAnalyzer {
	return &StrategyAnalyzer{
		clients: clients,
		logger:  logger.WithComponent("strategy_analyzer"),
	}
}

// Providers returns the providers with a configured client.
func (sa *StrategyAnalyzer) Providers() []Provider {
	out := make([]Provider, 0, len(sa.clients))
	for p, c := range sa.clients {
		if c.IsConfigured() {
			out = append(out, p)
		}
	}
	return out
}

// Generate produces strategy commentary for the snapshot using one provider.
func (sa *StrategyAnalyzer) Generate(ctx context.Context, provider Provider, result *analysis.Result) (*StrategyAnalysis, error) {
	client, ok := sa.clients[provider]
	if !ok {
		return nil, fmt.Errorf("unknown provider: %s", provider)
	}
	if !client.IsConfigured() {
		return nil, fmt.Errorf("provider %s has no API key configured", provider)
	}

	prompt := BuildStrategyPrompt(result)
	start := time.Now()

	sa.logger.Info("Generating strategy analysis",
		"provider", string(provider),
		"model", client.Model(),
		"trend", string(result.Trend.Direction))

	text, err := client.Complete(ctx, systemPrompt, prompt)
	elapsed := time.Since(start).Seconds()

	if err != nil {
		sa.logger.Error("Strategy analysis failed",
			"provider", string(provider),
			"elapsed", elapsed,
			"error", err)
		return &StrategyAnalysis{
			Status:      "error",
			Analysis:    fmt.Sprintf("Failed to generate analysis: %v", err),
			Model:       client.Model(),
			Provider:    string(provider),
			ElapsedTime: elapsed,
		}, err
	}

	sa.logger.Info("Strategy analysis generated",
		"provider", string(provider),
		"elapsed", elapsed)

	return &StrategyAnalysis{
		Status:      "success",
		Analysis:    text,
		Model:       client.Model(),
		Provider:    string(provider),
		ElapsedTime: elapsed,
	}, nil
}
