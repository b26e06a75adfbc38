package storage

import "github.com/shopspring/decimal"

// Statistics aggregates realized P&L over closed trades. Money fields are dollars.
type Statistics struct {
	TotalTrades     int             `json:"total_trades"`
	WinningTrades   int             `json:"winning_trades"`
	LosingTrades    int             `json:"losing_trades"`
	BreakevenTrades int             `json:"breakeven_trades"`
	WinRate         float64         `json:"win_rate"` // percent of decided trades
	TotalPnL        decimal.Decimal `json:"total_pnl"`
	AverageWin      decimal.Decimal `json:"average_win"`
	AverageLoss     decimal.Decimal `json:"average_loss"`
	MaxDrawdown     decimal.Decimal `json:"max_drawdown"` // largest peak-to-trough drop of cumulative P&L, <= 0
	PeakPnL         decimal.Decimal `json:"peak_pnl"`
	CurrentStreak   int             `json:"current_streak"` // +wins / -losses in a row
}

func (s *Statistics) record(pnl decimal.Decimal) {
	s.TotalTrades++
	s.TotalPnL = s.TotalPnL.Add(pnl)

	switch {
	case pnl.IsPositive():
		s.WinningTrades++
		if s.CurrentStreak >= 0 {
			s.CurrentStreak++
		} else {
			s.CurrentStreak = 1
		}
		s.AverageWin = runningMean(s.AverageWin, pnl, s.WinningTrades)
	case pnl.IsNegative():
		s.LosingTrades++
		if s.CurrentStreak <= 0 {
			s.CurrentStreak--
		} else {
			s.CurrentStreak = -1
		}
		s.AverageLoss = runningMean(s.AverageLoss, pnl, s.LosingTrades)
	default:
		// pnl == 0 is breakeven - it neither extends nor breaks a streak
		s.BreakevenTrades++
	}

	decided := s.WinningTrades + s.LosingTrades
	if decided > 0 {
		s.WinRate = float64(s.WinningTrades) / float64(decided) * 100
	}

	if s.TotalPnL.GreaterThan(s.PeakPnL) {
		s.PeakPnL = s.TotalPnL
	}
	if dd := s.TotalPnL.Sub(s.PeakPnL); dd.LessThan(s.MaxDrawdown) {
		s.MaxDrawdown = dd
	}
}

func runningMean(mean, x decimal.Decimal, n int) decimal.Decimal {
	if n <= 1 {
		return x
	}
	total := mean.Mul(decimal.NewFromInt(int64(n - 1))).Add(x)
	return total.Div(decimal.NewFromInt(int64(n)))
}
