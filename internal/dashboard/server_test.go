package dashboard

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eddiefleurent/options_advisor/internal/models"
	"github.com/eddiefleurent/options_advisor/internal/storage"
)

const bullCall = "Buy 450.0C @5.9 / Sell 455.0C @3.4"

func newTestServer(t *testing.T, token string) (*Server, *storage.MockStorage) {
	t.Helper()
	store := storage.NewMockStorage()
	s := NewServer(Config{AuthToken: token}, store, nil)
	return s, store
}

func do(t *testing.T, s *Server, method, path string, body any, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func TestAuthMiddleware(t *testing.T) {
	s, _ := newTestServer(t, "secret")

	rec := do(t, s, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, s, http.MethodGet, "/api/stats", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"unauthorized"}`, rec.Body.String())

	rec = do(t, s, http.MethodGet, "/api/stats", nil, "X-Auth-Token", "secret")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, s, http.MethodGet, "/api/stats?token=secret", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, s, http.MethodGet, "/api/stats?token=wrong", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandleSelect(t *testing.T) {
	s, _ := newTestServer(t, "")

	tests := []struct {
		trend  string
		rank   float64
		want   models.StrategyType
		bucket string
	}{
		{"bullish", 0.1, models.StrategyBullCallSpread, "low"},
		{"bearish", 0.45, models.StrategyLongPut, "mid"},
		{"neutral", 0.9, models.StrategyIronCondor, "high"},
		{"sideways", 0.5, models.StrategyHoldCash, "mid"},
	}
	for _, tt := range tests {
		rec := do(t, s, http.MethodPost, "/api/select", map[string]any{"trend": tt.trend, "iv_rank": tt.rank})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var got selectResponse
		decodeBody(t, rec, &got)
		assert.Equal(t, tt.want, got.Strategy, tt.trend)
		assert.Equal(t, tt.bucket, got.Bucket, tt.trend)
	}

	rec := do(t, s, http.MethodPost, "/api/select", map[string]any{"trend": "bullish"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodPost, "/api/select", map[string]any{"trend": "bullish", "iv_rank": 0.2, "extra": 1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleRisk(t *testing.T) {
	s, _ := newTestServer(t, "")

	rec := do(t, s, http.MethodPost, "/api/risk/bull_call_spread", map[string]any{"description": bullCall})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var got riskResponse
	decodeBody(t, rec, &got)
	assert.Equal(t, models.StrategyBullCallSpread, got.Strategy)
	assert.Equal(t, "2.50", got.MaxLoss.String())
	assert.Equal(t, "2.50", got.MaxProfit.String())
	assert.Equal(t, "452.50", got.Breakeven.String())
	assert.Contains(t, got.Report, "RISK ANALYSIS (BULL_CALL_SPREAD)")

	legs := []models.Leg{
		{Action: models.ActionBuy, Strike: decimal.NewFromInt(450), Type: models.OptionCall, Price: decimal.RequireFromString("5.9")},
		{Action: models.ActionBuy, Strike: decimal.NewFromInt(450), Type: models.OptionPut, Price: decimal.RequireFromString("5.9")},
	}
	rec = do(t, s, http.MethodPost, "/api/risk/straddle", map[string]any{
		"legs": legs, "underlying_price": "450", "dte": 32,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decodeBody(t, rec, &got)
	assert.Equal(t, "11.80", got.MaxLoss.String())
	assert.True(t, got.MaxProfit.IsUnlimited())
	assert.Equal(t, 32, got.DTE)

	rec = do(t, s, http.MethodPost, "/api/risk/hold_cash", map[string]any{"description": bullCall})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodPost, "/api/risk/iron_condor", map[string]any{"description": bullCall})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestHandleParse(t *testing.T) {
	s, _ := newTestServer(t, "")

	rec := do(t, s, http.MethodPost, "/api/parse", map[string]any{
		"description": bullCall + " / Buy garbage",
		"strategy":    "bull_call_spread",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var got parseResponse
	decodeBody(t, rec, &got)
	require.Len(t, got.Legs, 2)
	assert.Equal(t, models.ActionBuy, got.Legs[0].Action)
	assert.True(t, got.Legs[0].Strike.Equal(decimal.NewFromInt(450)))
	assert.Equal(t, models.ActionSell, got.Legs[1].Action)
	assert.True(t, got.Legs[1].Price.Equal(decimal.RequireFromString("3.4")))
	assert.NotEmpty(t, got.Skipped)
	assert.True(t, got.Complete)

	rec = do(t, s, http.MethodPost, "/api/parse", map[string]any{"description": ""})
	require.Equal(t, http.StatusOK, rec.Code)
	decodeBody(t, rec, &got)
	assert.Empty(t, got.Legs)
	assert.False(t, got.Complete)
}

func TestHandlePnL(t *testing.T) {
	s, _ := newTestServer(t, "")

	quotes := []map[string]string{
		{"bid": "7.0", "ask": "7.2"},
		{"bid": "4.4", "ask": "4.6"},
	}
	rec := do(t, s, http.MethodPost, "/api/pnl", map[string]any{
		"description": bullCall, "quotes": quotes, "quantity": 1,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var got models.PnLResult
	decodeBody(t, rec, &got)
	assert.True(t, got.EntryCost.Equal(decimal.NewFromInt(250)), got.EntryCost.String())
	assert.True(t, got.ExitValue.Equal(decimal.NewFromInt(260)), got.ExitValue.String())
	assert.True(t, got.PnL.Equal(decimal.NewFromInt(10)), got.PnL.String())
	assert.True(t, got.PnLPct.Equal(decimal.NewFromInt(4)), got.PnLPct.String())

	rec = do(t, s, http.MethodPost, "/api/pnl", map[string]any{
		"description": bullCall, "quotes": quotes[:1], "quantity": 1,
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.JSONEq(t, `{"error":"incomplete pricing"}`, rec.Body.String())

	rec = do(t, s, http.MethodPost, "/api/pnl", map[string]any{"quotes": quotes})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTradesAndStats(t *testing.T) {
	s, store := newTestServer(t, "")
	now := time.Now().UTC()
	s.now = func() time.Time { return now }
	expiry := now.AddDate(0, 1, 0).Truncate(24 * time.Hour)

	open := models.NewTradeRecord("open", "SPY", models.StrategyBullCallSpread, expiry, nil, bullCall)
	open.Risk.MaxLoss = models.Finite(decimal.RequireFromString("2.5"))
	open.LastAnalysis = &models.AnalysisResult{PnLResult: models.PnLResult{
		PnL: decimal.NewFromInt(10), PnLPct: decimal.NewFromInt(4),
	}}
	require.NoError(t, store.AddTrade(open))

	sim := models.NewTradeRecord("sim", "QQQ", models.StrategyLongPut, expiry, nil, "Buy 380.0P @4.2")
	require.NoError(t, sim.TransitionState(models.StateSimulated, "dry_run_approved"))
	require.NoError(t, store.AddTrade(sim))

	closed := models.NewTradeRecord("closed", "IWM", models.StrategyStraddle, expiry, nil, "Buy 200.0C @3.0 + 200.0P @3.0")
	require.NoError(t, store.AddTrade(closed))
	require.NoError(t, store.CloseTrade("closed", models.StateExpired, "expired_unexecuted", decimal.NewFromInt(-600)))

	rec := do(t, s, http.MethodGet, "/api/trades", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var all []TradeView
	decodeBody(t, rec, &all)
	assert.Len(t, all, 3)

	rec = do(t, s, http.MethodGet, "/api/trades?state=recommended&state=simulated", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var opens []TradeView
	decodeBody(t, rec, &opens)
	require.Len(t, opens, 2)
	assert.Equal(t, "open", opens[0].ID)
	require.NotNil(t, opens[0].CurrentPnL)
	assert.True(t, opens[0].CurrentPnL.Equal(decimal.NewFromInt(10)))
	assert.True(t, opens[0].IsProfit)
	assert.Equal(t, "2.50", opens[0].MaxLoss.String())

	rec = do(t, s, http.MethodGet, "/api/trades/closed", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var one struct {
		TradeView
		Legs []models.Leg `json:"legs"`
	}
	decodeBody(t, rec, &one)
	assert.Equal(t, models.StateExpired, one.State)
	assert.True(t, one.RealizedPnL.Equal(decimal.NewFromInt(-600)))
	assert.False(t, one.IsProfit)

	rec = do(t, s, http.MethodGet, "/api/trades/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, s, http.MethodGet, "/api/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var stats Statistics
	decodeBody(t, rec, &stats)
	assert.Equal(t, 1, stats.TotalTrades)
	assert.Equal(t, 1, stats.LosingTrades)
	assert.True(t, stats.TotalPnL.Equal(decimal.NewFromInt(-600)))
	assert.Equal(t, 2, stats.CurrentOpen)
	assert.Equal(t, 1, stats.Simulated)
}
