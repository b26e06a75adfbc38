package marketdata

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakySource fails every call while failing is set.
type flakySource struct {
	mu      sync.Mutex
	failing bool
	err     error
	calls   int
}

func (f *flakySource) result() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failing {
		return f.err
	}
	return nil
}

func (f *flakySource) setFailing(v bool) {
	f.mu.Lock()
	f.failing = v
	f.mu.Unlock()
}

func (f *flakySource) GetUnderlyingPrice(context.Context, string) (decimal.Decimal, error) {
	if err := f.result(); err != nil {
		return decimal.Zero, err
	}
	return d("450.25"), nil
}

func (f *flakySource) GetDailyCloses(context.Context, string, int) ([]float64, error) {
	if err := f.result(); err != nil {
		return nil, err
	}
	return []float64{1, 2, 3}, nil
}

func (f *flakySource) GetExpirations(context.Context, string) ([]time.Time, error) {
	if err := f.result(); err != nil {
		return nil, err
	}
	return []time.Time{time.Date(2025, 4, 17, 0, 0, 0, 0, time.UTC)}, nil
}

func (f *flakySource) GetOptionChain(context.Context, string, time.Time) ([]OptionQuote, error) {
	if err := f.result(); err != nil {
		return nil, err
	}
	return testChain(), nil
}

func fastSettings() CircuitBreakerSettings {
	return CircuitBreakerSettings{
		MaxRequests:  1,
		Interval:     time.Minute,
		Timeout:      15 * time.Millisecond,
		MinRequests:  3,
		FailureRatio: 0.5,
	}
}

func TestCircuitBreakerSource_PassesThrough(t *testing.T) {
	src := &flakySource{}
	cb := NewCircuitBreakerSource(src, DefaultCircuitBreakerSettings(), nil)
	ctx := context.Background()

	price, err := cb.GetUnderlyingPrice(ctx, "SPY")
	require.NoError(t, err)
	assert.True(t, price.Equal(d("450.25")))

	closes, err := cb.GetDailyCloses(ctx, "SPY", 3)
	require.NoError(t, err)
	assert.Len(t, closes, 3)

	exps, err := cb.GetExpirations(ctx, "SPY")
	require.NoError(t, err)
	assert.Len(t, exps, 1)

	chain, err := cb.GetOptionChain(ctx, "SPY", exps[0])
	require.NoError(t, err)
	assert.Len(t, chain, len(testChain()))
	assert.Equal(t, gobreaker.StateClosed, cb.State())
}

func TestCircuitBreakerSource_TripsOnFailures(t *testing.T) {
	src := &flakySource{failing: true, err: errors.New("connection reset")}
	cb := NewCircuitBreakerSource(src, fastSettings(), nil)

	for i := 0; i < 3; i++ {
		_, err := cb.GetUnderlyingPrice(context.Background(), "SPY")
		require.Error(t, err)
	}
	assert.Equal(t, gobreaker.StateOpen, cb.State())

	// Open breaker rejects without reaching the source.
	before := src.calls
	_, err := cb.GetUnderlyingPrice(context.Background(), "SPY")
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, before, src.calls)
}

func TestCircuitBreakerSource_NotFoundDoesNotTrip(t *testing.T) {
	src := &flakySource{failing: true, err: ErrSymbolNotFound}
	cb := NewCircuitBreakerSource(src, fastSettings(), nil)

	for i := 0; i < 6; i++ {
		_, err := cb.GetUnderlyingPrice(context.Background(), "ZZZZ")
		assert.ErrorIs(t, err, ErrSymbolNotFound)
	}
	assert.Equal(t, gobreaker.StateClosed, cb.State())
}

func TestCircuitBreakerSource_Recovers(t *testing.T) {
	src := &flakySource{failing: true, err: errors.New("timeout")}
	cb := NewCircuitBreakerSource(src, fastSettings(), nil)

	for i := 0; i < 3; i++ {
		_, _ = cb.GetDailyCloses(context.Background(), "SPY", 10)
	}
	require.Equal(t, gobreaker.StateOpen, cb.State())

	src.setFailing(false)
	require.Eventually(t, func() bool {
		return cb.State() == gobreaker.StateHalfOpen
	}, time.Second, time.Millisecond)

	_, err := cb.GetDailyCloses(context.Background(), "SPY", 10)
	require.NoError(t, err)
	assert.Equal(t, gobreaker.StateClosed, cb.State())
}
