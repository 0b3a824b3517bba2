// Package llm is the gateway to the text-completion providers. A single
// Client interface hides which vendor serves a given model; callers pick a
// model name from the closed set and get plain text back.
package llm

import (
	"context"
	"log/slog"
	"time"

	"github.com/tmc/langchaingo/llms"

	"github.com/doculord/doculord/pkg/resilience"
)

// Client is the single entry point for text completion.
type Client interface {
	// Invoke sends prompt to the model and returns the raw response text.
	Invoke(ctx context.Context, prompt string) (string, error)
	// ModelName returns the configured model identifier.
	ModelName() string
}

// gateway wraps a langchaingo model with retry and a per-provider circuit
// breaker. Structured outputs are parsed by callers with the robust JSON
// parser in this package.
type gateway struct {
	model    llms.Model
	name     string
	provider string
	breaker  *resilience.CircuitBreaker
	retryCfg resilience.RetryConfig
}

func newGateway(model llms.Model, name, provider string) *gateway {
	return &gateway{
		model:    model,
		name:     name,
		provider: provider,
		breaker:  resilience.GetBreaker("llm:" + provider),
		retryCfg: resilience.RetryConfig{
			MaxRetries:      2,
			BaseDelay:       1 * time.Second,
			ExponentialBase: 2.0,
		},
	}
}

func (g *gateway) ModelName() string { return g.name }

func (g *gateway) Invoke(ctx context.Context, prompt string) (string, error) {
	if err := g.breaker.Check(); err != nil {
		return "", err
	}

	var response string
	err := resilience.Do(ctx, g.retryCfg, "llm:"+g.provider, alwaysRetryable, func(ctx context.Context) error {
		text, err := llms.GenerateFromSinglePrompt(ctx, g.model, prompt, llms.WithTemperature(0))
		if err != nil {
			return resilience.Transient(err)
		}
		response = text
		return nil
	})
	g.breaker.Observe(err)
	if err != nil {
		slog.Error("LLM invocation failed",
			"model", g.name,
			"provider", g.provider,
			"error", err)
		return "", err
	}
	return response, nil
}

// Provider errors do not reliably distinguish rate limits and timeouts from
// permanent failures, so every completion error is treated as retryable
// within the bounded retry budget.
func alwaysRetryable(error) bool { return true }
