package marketdata

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/eddiefleurent/options_advisor/internal/util"
)

// CircuitBreakerSource wraps a Source with circuit breaker functionality
type CircuitBreakerSource struct {
	source  Source
	breaker *gobreaker.CircuitBreaker
}

// Ensure CircuitBreakerSource implements Source at compile time.
var _ Source = (*CircuitBreakerSource)(nil)

// CircuitBreakerSettings configures circuit breaker behavior
type CircuitBreakerSettings struct {
	MaxRequests  uint32        // Max requests when half-open
	Interval     time.Duration // Reset counts interval
	Timeout      time.Duration // Open circuit duration
	MinRequests  uint32        // Min requests before tripping
	FailureRatio float64       // Failure ratio threshold
}

// DefaultCircuitBreakerSettings trips at 60% failures over at least five requests.
func DefaultCircuitBreakerSettings() CircuitBreakerSettings {
	return CircuitBreakerSettings{
		MaxRequests:  3,                // Allow 3 requests when half-open
		Interval:     60 * time.Second, // Reset counts every minute
		Timeout:      30 * time.Second, // Open circuit for 30 seconds
		MinRequests:  5,                // Minimum requests before tripping
		FailureRatio: 0.6,              // Trip if 60% failure rate
	}
}

// NewCircuitBreakerSource creates a CircuitBreakerSource with custom settings
func NewCircuitBreakerSource(source Source, settings CircuitBreakerSettings, logger logrus.FieldLogger) *CircuitBreakerSource {
	logger = util.LoggerOrDiscard(logger)
	gbSettings := gobreaker.Settings{
		Name:        "MarketDataCircuitBreaker",
		MaxRequests: settings.MaxRequests,
		Interval:    settings.Interval,
		Timeout:     settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests == 0 || counts.Requests < settings.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= settings.FailureRatio
		},
		// Lookups for unknown symbols or expiries are answers, not outages.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrSymbolNotFound) || errors.Is(err, ErrExpiryNotFound)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{"breaker": name, "from": from.String(), "to": to.String()}).
				Warn("circuit breaker state changed")
		},
	}

	return &CircuitBreakerSource{
		source:  source,
		breaker: gobreaker.NewCircuitBreaker(gbSettings),
	}
}

// State reports the breaker state.
func (c *CircuitBreakerSource) State() gobreaker.State {
	return c.breaker.State()
}

// execCircuitBreaker is a generic helper for circuit breaker wrapper methods
func execCircuitBreaker[T any](breaker *gobreaker.CircuitBreaker, fn func() (T, error)) (T, error) {
	var zero T
	res, err := breaker.Execute(func() (interface{}, error) { return fn() })
	if err != nil {
		return zero, err
	}
	if res == nil {
		return zero, nil
	}
	v, ok := res.(T)
	if !ok {
		return zero, errors.New("circuit breaker: type assertion failed")
	}
	return v, nil
}

// GetUnderlyingPrice implements Source.
func (c *CircuitBreakerSource) GetUnderlyingPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	return execCircuitBreaker(c.breaker, func() (decimal.Decimal, error) { return c.source.GetUnderlyingPrice(ctx, symbol) })
}

// GetDailyCloses implements Source.
func (c *CircuitBreakerSource) GetDailyCloses(ctx context.Context, symbol string, days int) ([]float64, error) {
	return execCircuitBreaker(c.breaker, func() ([]float64, error) { return c.source.GetDailyCloses(ctx, symbol, days) })
}

// GetExpirations implements Source.
func (c *CircuitBreakerSource) GetExpirations(ctx context.Context, symbol string) ([]time.Time, error) {
	return execCircuitBreaker(c.breaker, func() ([]time.Time, error) { return c.source.GetExpirations(ctx, symbol) })
}

// GetOptionChain implements Source.
func (c *CircuitBreakerSource) GetOptionChain(ctx context.Context, symbol string, expiry time.Time) ([]OptionQuote, error) {
	return execCircuitBreaker(c.breaker, func() ([]OptionQuote, error) { return c.source.GetOptionChain(ctx, symbol, expiry) })
}
