// Package executor walks recommended trades through the dry-run approval workflow.
// Nothing is ever sent to a broker: approved trades are simulated and journaled.
package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/eddiefleurent/options_advisor/internal/journal"
	"github.com/eddiefleurent/options_advisor/internal/models"
	"github.com/eddiefleurent/options_advisor/internal/storage"
	"github.com/eddiefleurent/options_advisor/internal/util"
)

// ErrRiskGate is wrapped by risk gate failures.
var ErrRiskGate = errors.New("risk gate")

// Execution statuses written to the executions journal.
const (
	StatusSimulated = "SIMULATED"
	StatusRejected  = "REJECTED"
	StatusDeclined  = "DECLINED"
	StatusSkipped   = "SKIPPED"
)

// OrderIDPrefix marks simulated orders.
const OrderIDPrefix = "DRY_RUN_"

// Decision is the operator's answer for one trade.
type Decision int

const (
	// Skip leaves the trade recommended for a later run.
	Skip Decision = iota
	// Approve simulates the trade.
	Approve
	// Decline rejects the trade for good.
	Decline
)

// Approver decides on one trade that passed the risk gate.
type Approver interface {
	Decide(ctx context.Context, trade models.TradeRecord) (Decision, error)
}

// ApproverFunc adapts a function to Approver.
type ApproverFunc func(ctx context.Context, trade models.TradeRecord) (Decision, error)

// Decide implements Approver.
func (f ApproverFunc) Decide(ctx context.Context, trade models.TradeRecord) (Decision, error) {
	return f(ctx, trade)
}

// AutoApprove approves every trade.
var AutoApprove = ApproverFunc(func(context.Context, models.TradeRecord) (Decision, error) {
	return Approve, nil
})

// Config is the pre-trade risk gate.
type Config struct {
	MinProbProfit decimal.Decimal
	// MaxLossPerTrade caps max loss in dollars per contract; zero disables the cap.
	MaxLossPerTrade decimal.Decimal
}

// Outcome records what happened to one trade.
type Outcome struct {
	Trade   models.TradeRecord `json:"trade"`
	Status  string             `json:"status"`
	OrderID string             `json:"order_id,omitempty"`
	Reason  string             `json:"reason,omitempty"`
}

// Executor runs the dry-run workflow against the trade store.
type Executor struct {
	cfg      Config
	store    storage.Interface
	approver Approver
	journal  *journal.Journal
	logger   logrus.FieldLogger
	now      func() time.Time
}

// Option customizes an Executor.
type Option func(*Executor)

// WithJournal appends simulated orders to the executions CSV.
func WithJournal(j *journal.Journal) Option {
	return func(e *Executor) { e.journal = j }
}

// WithLogger sets the logger.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(e *Executor) { e.logger = logger }
}

// WithClock fixes the time used for order ids and journal timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Executor) { e.now = now }
}

// New creates an Executor.
func New(cfg Config, store storage.Interface, approver Approver, opts ...Option) *Executor {
	if store == nil {
		panic("executor.New: store must not be nil")
	}
	if approver == nil {
		panic("executor.New: approver must not be nil")
	}
	e := &Executor{cfg: cfg, store: store, approver: approver, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = util.LoggerOrDiscard(e.logger)
	return e
}

// CheckRisk applies the risk gate to one trade.
func (e *Executor) CheckRisk(t models.TradeRecord) error {
	if t.Risk.ProbProfit.LessThan(e.cfg.MinProbProfit) {
		return fmt.Errorf("%w: probability of profit %s below %s", ErrRiskGate,
			t.Risk.ProbProfit.StringFixed(2), e.cfg.MinProbProfit.StringFixed(2))
	}
	if e.cfg.MaxLossPerTrade.IsPositive() {
		loss, ok := t.Risk.MaxLoss.Value()
		if !ok {
			return fmt.Errorf("%w: max loss %q is not a finite amount", ErrRiskGate, t.Risk.MaxLoss.String())
		}
		perContract := loss.Mul(models.ContractMultiplier)
		if perContract.GreaterThan(e.cfg.MaxLossPerTrade) {
			return fmt.Errorf("%w: max loss $%s per contract exceeds $%s", ErrRiskGate,
				perContract.StringFixed(2), e.cfg.MaxLossPerTrade.StringFixed(2))
		}
	}
	return nil
}

// Pending returns the recommended trades that have not expired, oldest first.
func (e *Executor) Pending() []models.TradeRecord {
	now := e.now()
	var out []models.TradeRecord
	for _, t := range e.store.GetTradesByState(models.StateRecommended) {
		if !t.IsExpired(now) {
			out = append(out, t)
		}
	}
	return out
}

// Execute decides every pending trade. Approver errors abort the run; decisions already
// made are kept and journaled.
func (e *Executor) Execute(ctx context.Context) ([]Outcome, error) {
	pending := e.Pending()
	e.logger.Infof("DRY RUN: %d trade(s) awaiting approval", len(pending))

	var outcomes []Outcome
	var runErr error
	for i, t := range pending {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		log := e.logger.WithFields(logrus.Fields{"symbol": t.Symbol, "strategy": t.Strategy, "trade_id": t.ID})
		log.Infof("Trade %d/%d: %s", i+1, len(pending), t.Description)

		out, err := e.executeOne(ctx, t, log)
		if err != nil {
			runErr = err
			break
		}
		outcomes = append(outcomes, out)
	}

	if err := e.store.Save(); err != nil && runErr == nil {
		runErr = fmt.Errorf("saving trades: %w", err)
	}
	if err := e.journalOutcomes(outcomes); err != nil && runErr == nil {
		runErr = err
	}

	simulated := 0
	for _, o := range outcomes {
		if o.Status == StatusSimulated {
			simulated++
		}
	}
	e.logger.Infof("Execution complete: %d/%d trade(s) simulated", simulated, len(pending))
	return outcomes, runErr
}

func (e *Executor) executeOne(ctx context.Context, t models.TradeRecord, log logrus.FieldLogger) (Outcome, error) {
	if err := e.CheckRisk(t); err != nil {
		log.WithError(err).Warn("Trade rejected")
		if cerr := e.store.CloseTrade(t.ID, models.StateRejected, "risk_gate", decimal.Zero); cerr != nil {
			return Outcome{}, fmt.Errorf("rejecting %s: %w", t.ID, cerr)
		}
		return e.outcome(t.ID, StatusRejected, "", err.Error()), nil
	}

	decision, err := e.approver.Decide(ctx, t)
	if err != nil {
		return Outcome{}, fmt.Errorf("approval of %s: %w", t.ID, err)
	}

	switch decision {
	case Approve:
		orderID := OrderIDPrefix + e.now().Format("20060102150405")
		stored, err := e.store.GetTrade(t.ID)
		if err != nil {
			return Outcome{}, err
		}
		if err := stored.TransitionState(models.StateSimulated, "dry_run_approved"); err != nil {
			return Outcome{}, err
		}
		stored.OrderID = orderID
		stored.ExecutedAt = e.now().UTC()
		if err := e.store.UpdateTrade(stored); err != nil {
			return Outcome{}, fmt.Errorf("recording simulation of %s: %w", t.ID, err)
		}
		log.WithField("order_id", orderID).Info("Trade approved (DRY RUN - not submitted)")
		return Outcome{Trade: *stored, Status: StatusSimulated, OrderID: orderID}, nil

	case Decline:
		if err := e.store.CloseTrade(t.ID, models.StateRejected, "declined", decimal.Zero); err != nil {
			return Outcome{}, fmt.Errorf("declining %s: %w", t.ID, err)
		}
		log.Info("Trade declined")
		return e.outcome(t.ID, StatusDeclined, "", "declined by operator"), nil

	default:
		log.Info("Trade skipped")
		return Outcome{Trade: t, Status: StatusSkipped}, nil
	}
}

// outcome reloads the stored trade so the outcome reflects its new state.
func (e *Executor) outcome(id, status, orderID, reason string) Outcome {
	o := Outcome{Status: status, OrderID: orderID, Reason: reason}
	if t, err := e.store.GetTrade(id); err == nil {
		o.Trade = *t
	}
	return o
}

func (e *Executor) journalOutcomes(outcomes []Outcome) error {
	if e.journal == nil {
		return nil
	}
	var rows []journal.ExecutionRow
	for _, o := range outcomes {
		if o.Status != StatusSimulated {
			continue
		}
		rows = append(rows, journal.NewExecutionRow(e.now(), o.Trade.Symbol, o.Trade.Strategy,
			o.OrderID, o.Status, o.Trade.Description))
	}
	if err := e.journal.AppendExecutions(rows); err != nil {
		return fmt.Errorf("journaling executions: %w", err)
	}
	return nil
}
