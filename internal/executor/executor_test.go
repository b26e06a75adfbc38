package executor

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eddiefleurent/options_advisor/internal/journal"
	"github.com/eddiefleurent/options_advisor/internal/models"
	"github.com/eddiefleurent/options_advisor/internal/storage"
)

var fixedNow = time.Date(2025, 3, 10, 15, 4, 5, 0, time.UTC)

func clock() time.Time { return fixedNow }

func gate() Config {
	return Config{
		MinProbProfit:   decimal.RequireFromString("0.40"),
		MaxLossPerTrade: decimal.NewFromInt(500),
	}
}

func recommended(id, symbol, prob, maxLoss string, expiry time.Time) *models.TradeRecord {
	t := models.NewTradeRecord(id, symbol, models.StrategyBullCallSpread, expiry, nil,
		"Buy 450.0C @5.9 / Sell 455.0C @3.4")
	t.Risk.ProbProfit = decimal.RequireFromString(prob)
	t.Risk.MaxLoss = models.Finite(decimal.RequireFromString(maxLoss))
	return t
}

// scripted answers by trade id; unknown ids are skipped.
func scripted(answers map[string]Decision) Approver {
	return ApproverFunc(func(_ context.Context, t models.TradeRecord) (Decision, error) {
		return answers[t.ID], nil
	})
}

func TestCheckRisk(t *testing.T) {
	e := New(gate(), storage.NewMockStorage(), AutoApprove)
	expiry := fixedNow.AddDate(0, 1, 0)

	assert.NoError(t, e.CheckRisk(*recommended("a", "SPY", "0.50", "2.50", expiry)))
	assert.NoError(t, e.CheckRisk(*recommended("a", "SPY", "0.40", "5.00", expiry)))

	err := e.CheckRisk(*recommended("b", "SPY", "0.35", "2.50", expiry))
	assert.ErrorIs(t, err, ErrRiskGate)
	assert.Contains(t, err.Error(), "0.35 below 0.40")

	err = e.CheckRisk(*recommended("c", "SPY", "0.50", "5.01", expiry))
	assert.ErrorIs(t, err, ErrRiskGate)
	assert.Contains(t, err.Error(), "$501.00")

	undefined := recommended("d", "SPY", "0.50", "1", expiry)
	undefined.Risk.MaxLoss = models.Undefined()
	assert.ErrorIs(t, e.CheckRisk(*undefined), ErrRiskGate)

	uncapped := New(Config{MinProbProfit: decimal.RequireFromString("0.40")}, storage.NewMockStorage(), AutoApprove)
	assert.NoError(t, uncapped.CheckRisk(*undefined))
}

func TestExecute_Workflow(t *testing.T) {
	store := storage.NewMockStorage()
	j := journal.New(t.TempDir())
	expiry := fixedNow.AddDate(0, 1, 0)

	for _, tr := range []*models.TradeRecord{
		recommended("approve", "SPY", "0.50", "2.50", expiry),
		recommended("gate", "QQQ", "0.30", "2.50", expiry),
		recommended("decline", "IWM", "0.50", "2.50", expiry),
		recommended("skip", "AAPL", "0.50", "2.50", expiry),
		recommended("stale", "SPY", "0.50", "2.50", fixedNow.AddDate(0, 0, -3)),
	} {
		require.NoError(t, store.AddTrade(tr))
	}

	e := New(gate(), store, scripted(map[string]Decision{"approve": Approve, "decline": Decline}),
		WithJournal(j), WithClock(clock))
	outcomes, err := e.Execute(context.Background())
	require.NoError(t, err)
	require.Len(t, outcomes, 4)

	assert.Equal(t, StatusSimulated, outcomes[0].Status)
	assert.Equal(t, "DRY_RUN_20250310150405", outcomes[0].OrderID)
	assert.Equal(t, models.StateSimulated, outcomes[0].Trade.State)
	assert.Equal(t, StatusRejected, outcomes[1].Status)
	assert.Contains(t, outcomes[1].Reason, "probability of profit")
	assert.Equal(t, StatusDeclined, outcomes[2].Status)
	assert.Equal(t, StatusSkipped, outcomes[3].Status)

	got, err := store.GetTrade("approve")
	require.NoError(t, err)
	assert.Equal(t, models.StateSimulated, got.State)
	assert.Equal(t, "DRY_RUN_20250310150405", got.OrderID)
	assert.Equal(t, fixedNow, got.ExecutedAt)

	got, err = store.GetTrade("gate")
	require.NoError(t, err)
	assert.Equal(t, models.StateRejected, got.State)
	assert.Equal(t, "risk_gate", got.ExitReason)

	got, err = store.GetTrade("decline")
	require.NoError(t, err)
	assert.Equal(t, models.StateRejected, got.State)
	assert.Equal(t, "declined", got.ExitReason)

	for _, id := range []string{"skip", "stale"} {
		got, err = store.GetTrade(id)
		require.NoError(t, err)
		assert.Equal(t, models.StateRecommended, got.State, id)
	}

	// Rejections never touch the statistics.
	assert.Zero(t, store.GetStatistics().TotalTrades)
	assert.Equal(t, 1, store.GetSaveCallCount())

	rows, err := j.ReadExecutions()
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, journal.ExecutionRow{
		Timestamp:   "2025-03-10 15:04:05",
		Symbol:      "SPY",
		Strategy:    "bull_call_spread",
		OrderID:     "DRY_RUN_20250310150405",
		Status:      "SIMULATED",
		Description: "Buy 450.0C @5.9 / Sell 455.0C @3.4",
	}, rows[0])

	// Only the skipped trade is still pending.
	pending := e.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, "skip", pending[0].ID)
}

func TestExecute_ApproverErrorStopsRun(t *testing.T) {
	store := storage.NewMockStorage()
	j := journal.New(t.TempDir())
	expiry := fixedNow.AddDate(0, 1, 0)
	require.NoError(t, store.AddTrade(recommended("first", "SPY", "0.50", "2.50", expiry)))
	require.NoError(t, store.AddTrade(recommended("second", "QQQ", "0.50", "2.50", expiry)))

	calls := 0
	approver := ApproverFunc(func(context.Context, models.TradeRecord) (Decision, error) {
		calls++
		if calls == 2 {
			return Skip, errors.New("terminal closed")
		}
		return Approve, nil
	})
	e := New(gate(), store, approver, WithJournal(j), WithClock(clock))

	outcomes, err := e.Execute(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "terminal closed")
	require.Len(t, outcomes, 1)

	rows, err := j.ReadExecutions()
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestExecute_Canceled(t *testing.T) {
	store := storage.NewMockStorage()
	require.NoError(t, store.AddTrade(recommended("a", "SPY", "0.50", "2.50", fixedNow.AddDate(0, 1, 0))))
	e := New(gate(), store, AutoApprove, WithClock(clock))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	outcomes, err := e.Execute(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, outcomes)
}

func TestNew_PanicsWithoutDependencies(t *testing.T) {
	assert.Panics(t, func() { New(gate(), nil, AutoApprove) })
	assert.Panics(t, func() { New(gate(), storage.NewMockStorage(), nil) })
}

func TestPrompt(t *testing.T) {
	tr := recommended("a", "SPY", "0.50", "2.50", fixedNow.AddDate(0, 1, 0))
	tests := []struct {
		input string
		want  Decision
	}{
		{"yes\n", Approve},
		{"Y\n", Approve},
		{"no\n", Decline},
		{"maybe\nskip\n", Skip},
		{"", Skip},
	}
	for _, tt := range tests {
		var out bytes.Buffer
		p := NewPrompt(strings.NewReader(tt.input), &out)
		got, err := p.Decide(context.Background(), *tr)
		require.NoError(t, err, tt.input)
		assert.Equal(t, tt.want, got, tt.input)
		assert.Contains(t, out.String(), "Buy 450.0C @5.9 / Sell 455.0C @3.4")
		assert.Contains(t, out.String(), "Max Loss: $2.50")
	}

	var out bytes.Buffer
	_, _ = NewPrompt(strings.NewReader("maybe\nn\n"), &out).Decide(context.Background(), *tr)
	assert.Contains(t, out.String(), "Invalid input")
}
