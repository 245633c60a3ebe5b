package llm

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/rohankatakam/repograph/internal/config"
	"github.com/rohankatakam/repograph/internal/errors"
)

// Provider represents the LLM provider
type Provider string

const (
	ProviderOpenAI Provider = "openai"
	ProviderGemini Provider = "gemini"
)

// Generator produces a single text completion for a prompt. Implementations
// make exactly one upstream call per Generate and never retry.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Model() string
}

// New creates the configured provider, wrapped with local request pacing and,
// when a Redis address is configured, the shared quota guard.
func New(ctx context.Context, cfg config.LLMConfig, logger *logrus.Logger) (Generator, error) {
	log := logger.WithField("component", "llm")

	var (
		gen Generator
		err error
	)
	switch Provider(cfg.Provider) {
	case ProviderGemini, "":
		if cfg.GeminiKey == "" {
			return nil, errors.ConfigError("GEMINI_API_KEY is not set; run 'repograph configure' or export it")
		}
		gen, err = NewGeminiClient(ctx, cfg.GeminiKey, cfg.GeminiModel,
			WithGeminiMaxOutputTokens(cfg.MaxOutputTokens), WithGeminiLogger(logger))
	case ProviderOpenAI:
		if cfg.OpenAIKey == "" {
			return nil, errors.ConfigError("OPENAI_API_KEY is not set; run 'repograph configure' or export it")
		}
		gen, err = NewOpenAIClient(cfg.OpenAIKey, cfg.OpenAIModel,
			WithOpenAIMaxTokens(int(cfg.MaxOutputTokens)), WithOpenAILogger(logger))
	default:
		return nil, errors.ConfigErrorf("unknown llm provider %q (expected gemini or openai)", cfg.Provider)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.KindConfig, errors.SeverityCritical, "initialize llm provider")
	}

	if cfg.RedisAddr != "" {
		quota, err := NewQuotaLimiter(ctx, cfg.RedisAddr, WithQuotaLogger(logger), WithQuotaPrefix(cfg.Provider))
		if err != nil {
			return nil, errors.Wrap(err, errors.KindConfig, errors.SeverityCritical, "connect quota store")
		}
		gen = WithQuota(gen, quota)
		log.WithField("redis_addr", cfg.RedisAddr).Info("shared model quota enabled")
	}

	if cfg.RequestsPerSecond > 0 {
		gen = WithRateLimit(gen, cfg.RequestsPerSecond, cfg.Burst)
	}

	log.WithFields(logrus.Fields{
		"provider": cfg.Provider,
		"model":    gen.Model(),
		"rps":      cfg.RequestsPerSecond,
	}).Info("llm provider initialized")

	return gen, nil
}
