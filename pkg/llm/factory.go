package llm

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/schema-assistant/pkg/config"
)

// NewCompletionClient builds the completion client named by cfg.Provider and
// wraps it with the per-call timeout and the default circuit breaker. tables
// seeds the keyword provider's table recognition.
func NewCompletionClient(cfg config.CompletionConfig, timeout time.Duration, tables []string, logger *zap.Logger) (CompletionClient, error) {
	clientCfg := &Config{
		Endpoint:    cfg.BaseURL,
		Model:       cfg.Model,
		APIKey:      cfg.APIKey,
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
	}

	var (
		client CompletionClient
		err    error
	)
	switch cfg.Provider {
	case "openai", "":
		client, err = NewClient(clientCfg, logger)
	case "anthropic":
		client, err = NewAnthropicClient(clientCfg, logger)
	case "keyword":
		client = NewKeywordClient(tables)
	default:
		return nil, fmt.Errorf("unsupported completion provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s client: %w", cfg.Provider, err)
	}

	logger.Info("Completion client configured",
		zap.String("provider", client.Provider()),
		zap.String("model", client.Model()))

	return Guard(client, NewCircuitBreaker(DefaultCircuitBreakerConfig()), timeout, logger), nil
}
