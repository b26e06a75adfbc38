// Package retry wraps a market data source with bounded retries for transient failures.
package retry

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/eddiefleurent/options_advisor/internal/marketdata"
	"github.com/eddiefleurent/options_advisor/internal/util"
)

// Config bounds the retry loop of every call.
type Config struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Timeout        time.Duration // whole call including retries
}

var DefaultConfig = Config{
	MaxRetries:     2,
	InitialBackoff: 500 * time.Millisecond,
	MaxBackoff:     5 * time.Second,
	Timeout:        10 * time.Second,
}

// Client is a marketdata.Source that retries transient errors of the wrapped source.
type Client struct {
	source marketdata.Source
	logger logrus.FieldLogger
	config Config
}

// Ensure Client implements marketdata.Source at compile time.
var _ marketdata.Source = (*Client)(nil)

// NewClient wraps source. Invalid config values fall back to DefaultConfig.
func NewClient(source marketdata.Source, logger logrus.FieldLogger, config ...Config) *Client {
	cfg := DefaultConfig
	if len(config) > 0 {
		cfg = config[0]
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = DefaultConfig.MaxRetries
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = DefaultConfig.InitialBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = DefaultConfig.MaxBackoff
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig.Timeout
	}

	return &Client{
		source: source,
		logger: util.LoggerOrDiscard(logger),
		config: cfg,
	}
}

// GetUnderlyingPrice implements marketdata.Source.
func (c *Client) GetUnderlyingPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	return withRetry(ctx, c, "quote "+symbol, func(ctx context.Context) (decimal.Decimal, error) {
		return c.source.GetUnderlyingPrice(ctx, symbol)
	})
}

// GetDailyCloses implements marketdata.Source.
func (c *Client) GetDailyCloses(ctx context.Context, symbol string, days int) ([]float64, error) {
	return withRetry(ctx, c, "closes "+symbol, func(ctx context.Context) ([]float64, error) {
		return c.source.GetDailyCloses(ctx, symbol, days)
	})
}

// GetExpirations implements marketdata.Source.
func (c *Client) GetExpirations(ctx context.Context, symbol string) ([]time.Time, error) {
	return withRetry(ctx, c, "expirations "+symbol, func(ctx context.Context) ([]time.Time, error) {
		return c.source.GetExpirations(ctx, symbol)
	})
}

// GetOptionChain implements marketdata.Source.
func (c *Client) GetOptionChain(ctx context.Context, symbol string, expiry time.Time) ([]marketdata.OptionQuote, error) {
	op := fmt.Sprintf("chain %s %s", symbol, expiry.Format("2006-01-02"))
	return withRetry(ctx, c, op, func(ctx context.Context) ([]marketdata.OptionQuote, error) {
		return c.source.GetOptionChain(ctx, symbol, expiry)
	})
}

func withRetry[T any](ctx context.Context, c *Client, op string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	callCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	var lastErr error
	backoff := c.config.InitialBackoff
	log := c.logger.WithField("op", op)

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if ctx.Err() != nil {
			return zero, fmt.Errorf("operation canceled: %w", ctx.Err())
		}
		select {
		case <-callCtx.Done():
			return zero, fmt.Errorf("%s timed out after %v: %w", op, c.config.Timeout, callCtx.Err())
		default:
		}

		log.Debugf("attempt %d/%d", attempt+1, c.config.MaxRetries+1)

		res, err := fn(callCtx)
		if err == nil {
			return res, nil
		}

		lastErr = err
		if !c.isTransientError(err) || attempt == c.config.MaxRetries {
			break
		}

		log.WithError(err).Warnf("transient error, retrying in %v", backoff)
		select {
		case <-time.After(backoff):
			backoff = c.calculateNextBackoff(backoff)
		case <-ctx.Done():
			return zero, fmt.Errorf("operation canceled during backoff: %w", ctx.Err())
		case <-callCtx.Done():
			return zero, fmt.Errorf("%s timed out during backoff: %w", op, callCtx.Err())
		}
	}

	return zero, fmt.Errorf("%s failed: %w", op, lastErr)
}

func (c *Client) calculateNextBackoff(currentBackoff time.Duration) time.Duration {
	backoff := time.Duration(float64(currentBackoff) * 1.5)
	if backoff > c.config.MaxBackoff {
		backoff = c.config.MaxBackoff
	}

	maxJitter := int64(backoff / 4)
	if maxJitter > 0 {
		jitterVal, err := rand.Int(rand.Reader, big.NewInt(maxJitter))
		if err != nil {
			c.logger.WithError(err).Warn("failed to generate jitter")
		} else {
			backoff += time.Duration(jitterVal.Int64())
		}
	}

	return backoff
}

func (c *Client) isTransientError(err error) bool {
	if err == nil {
		return false
	}

	errStr := strings.ToLower(err.Error())

	transientPatterns := []string{
		"timeout",
		"connection refused",
		"connection reset",
		"temporary failure",
		"server error",
		"rate limit",
		"429", // HTTP 429 Too Many Requests
		"502", // HTTP 502 Bad Gateway
		"503", // HTTP 503 Service Unavailable
		"504", // HTTP 504 Gateway Timeout
		"network",
		"dns",
		"tcp",
	}

	for _, pattern := range transientPatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}
