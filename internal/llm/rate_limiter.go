package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/rohankatakam/repograph/internal/logging"
)

// QuotaLimiter enforces provider quotas across proxy instances using Redis
// counters. It refuses calls once usage reaches 90% of a per-minute limit or
// the daily limit; it never waits.
type QuotaLimiter struct {
	redis    *redis.Client
	prefix   string
	rpmLimit int64 // Requests Per Minute
	tpmLimit int64 // Tokens Per Minute
	rpdLimit int64 // Requests Per Day
	logger   *logrus.Entry
	now      func() time.Time
}

// Gemini Tier 1 limits for gemini-2.0-flash
const (
	DefaultRPM = 1000      // Requests per minute
	DefaultTPM = 1_000_000 // Tokens per minute (input + output combined)
	DefaultRPD = 10_000    // Requests per day
)

// QuotaOption configures a QuotaLimiter
type QuotaOption func(*QuotaLimiter)

// WithQuotaLogger sets the logger
func WithQuotaLogger(logger *logrus.Logger) QuotaOption {
	return func(q *QuotaLimiter) { q.logger = logger.WithField("component", "quota") }
}

// WithQuotaPrefix namespaces the counters, typically by provider
func WithQuotaPrefix(prefix string) QuotaOption {
	return func(q *QuotaLimiter) {
		if prefix != "" {
			q.prefix = "repograph:" + prefix
		}
	}
}

// WithQuotaLimits overrides the default limits
func WithQuotaLimits(rpm, tpm, rpd int64) QuotaOption {
	return func(q *QuotaLimiter) {
		q.rpmLimit = rpm
		q.tpmLimit = tpm
		q.rpdLimit = rpd
	}
}

// NewQuotaLimiter connects to Redis at addr (e.g., "localhost:6380")
func NewQuotaLimiter(ctx context.Context, addr string, opts ...QuotaOption) (*QuotaLimiter, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   0,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}

	q := &QuotaLimiter{
		redis:    client,
		prefix:   "repograph:llm",
		rpmLimit: DefaultRPM,
		tpmLimit: DefaultTPM,
		rpdLimit: DefaultRPD,
		logger:   logging.Discard().WithField("component", "quota"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q, nil
}

// quotaScript increments all counters atomically and reports the first
// threshold crossed. 90% for per-minute limits, 100% for the daily limit.
var quotaScript = redis.NewScript(`
	local rpm_key = KEYS[1]
	local tpm_key = KEYS[2]
	local rpd_key = KEYS[3]
	local rpm_limit = tonumber(ARGV[1])
	local tpm_limit = tonumber(ARGV[2])
	local rpd_limit = tonumber(ARGV[3])
	local tokens = tonumber(ARGV[4])

	local rpm = redis.call('INCR', rpm_key)
	local tpm = redis.call('INCRBY', tpm_key, tokens)
	local rpd = redis.call('INCR', rpd_key)

	-- 70s on minute keys leaves room for clock skew
	if rpm == 1 then redis.call('EXPIRE', rpm_key, 70) end
	if tpm == tokens then redis.call('EXPIRE', tpm_key, 70) end
	if rpd == 1 then redis.call('EXPIRE', rpd_key, 86400) end

	if rpm >= rpm_limit * 0.9 then
		return {-1, 'RPM', rpm, rpm_limit}
	end
	if tpm >= tpm_limit * 0.9 then
		return {-2, 'TPM', tpm, tpm_limit}
	end
	if rpd >= rpd_limit then
		return {-3, 'RPD', rpd, rpd_limit}
	end

	return {0, 'OK', rpm, tpm, rpd}
`)

func (q *QuotaLimiter) keys(now time.Time) []string {
	minute := now.Format("2006-01-02T15:04")
	return []string{
		fmt.Sprintf("%s:rpm:%s", q.prefix, minute),
		fmt.Sprintf("%s:tpm:%s", q.prefix, minute),
		fmt.Sprintf("%s:rpd:%s", q.prefix, now.Format("2006-01-02")),
	}
}

// CheckAndIncrement records one request of estimatedTokens and returns an
// error if a quota threshold has been reached
func (q *QuotaLimiter) CheckAndIncrement(ctx context.Context, estimatedTokens int64) error {
	now := q.now()

	result, err := quotaScript.Run(ctx, q.redis, q.keys(now),
		q.rpmLimit, q.tpmLimit, q.rpdLimit, estimatedTokens).Slice()
	if err != nil {
		return fmt.Errorf("quota check failed: %w", err)
	}
	if len(result) < 2 {
		return fmt.Errorf("invalid quota response format")
	}

	code, _ := result[0].(int64)
	if code >= 0 {
		return nil
	}

	limitType, _ := result[1].(string)
	current, _ := result[2].(int64)
	limit, _ := result[3].(int64)

	log := q.logger.WithFields(logrus.Fields{
		"limit_type": limitType,
		"current":    current,
		"limit":      limit,
	})

	if code == -3 {
		tomorrow := now.Add(24 * time.Hour)
		midnight := time.Date(tomorrow.Year(), tomorrow.Month(), tomorrow.Day(), 0, 0, 0, 0, tomorrow.Location())
		log.Warn("daily model quota exhausted")
		return fmt.Errorf("daily quota exceeded: %d/%d requests (resets in %ds)",
			current, limit, int(midnight.Sub(now).Seconds()))
	}

	wait := 60 - now.Second()
	log.WithField("wait_seconds", wait).Warn("model quota threshold reached")
	return fmt.Errorf("approaching %s limit (%d/%d), wait %ds", limitType, current, limit, wait)
}

// CurrentUsage returns current usage statistics (rpm, tpm, rpd)
func (q *QuotaLimiter) CurrentUsage(ctx context.Context) (int64, int64, int64, error) {
	keys := q.keys(q.now())

	pipe := q.redis.Pipeline()
	rpmCmd := pipe.Get(ctx, keys[0])
	tpmCmd := pipe.Get(ctx, keys[1])
	rpdCmd := pipe.Get(ctx, keys[2])

	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return 0, 0, 0, fmt.Errorf("failed to get usage stats: %w", err)
	}

	rpm, _ := rpmCmd.Int64()
	tpm, _ := tpmCmd.Int64()
	rpd, _ := rpdCmd.Int64()

	return rpm, tpm, rpd, nil
}

// Close closes the Redis connection
func (q *QuotaLimiter) Close() error {
	if q.redis != nil {
		return q.redis.Close()
	}
	return nil
}
