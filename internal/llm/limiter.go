package llm

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// rateLimited paces outbound calls to stay under provider request limits.
// Waiting respects ctx, so a superseded analysis stops waiting immediately.
type rateLimited struct {
	next    Generator
	limiter *rate.Limiter
}

// WithRateLimit wraps g so that at most rps calls per second are issued
func WithRateLimit(g Generator, rps float64, burst int) Generator {
	if burst <= 0 {
		burst = 1
	}
	return &rateLimited{
		next:    g,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

func (r *rateLimited) Model() string {
	return r.next.Model()
}

func (r *rateLimited) Generate(ctx context.Context, prompt string) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}
	return r.next.Generate(ctx, prompt)
}

// quotaGuarded checks the shared quota before every call
type quotaGuarded struct {
	next  Generator
	quota *QuotaLimiter
}

// WithQuota wraps g with a shared quota check
func WithQuota(g Generator, q *QuotaLimiter) Generator {
	return &quotaGuarded{next: g, quota: q}
}

func (q *quotaGuarded) Model() string {
	return q.next.Model()
}

func (q *quotaGuarded) Generate(ctx context.Context, prompt string) (string, error) {
	if err := q.quota.CheckAndIncrement(ctx, EstimateTokens(prompt)); err != nil {
		return "", err
	}
	return q.next.Generate(ctx, prompt)
}

// EstimateTokens approximates the token count of text (about 4 bytes per token)
func EstimateTokens(text string) int64 {
	return int64(len(text)/4 + 1)
}
