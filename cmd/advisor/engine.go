package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/eddiefleurent/options_advisor/internal/models"
	"github.com/eddiefleurent/options_advisor/internal/pnl"
	"github.com/eddiefleurent/options_advisor/internal/risk"
	"github.com/eddiefleurent/options_advisor/internal/selector"
	"github.com/eddiefleurent/options_advisor/internal/tradedesc"
	"github.com/eddiefleurent/options_advisor/internal/util"
)

func newSelectCmd(a *app) *cobra.Command {
	var trend string
	var ivRank float64

	cmd := &cobra.Command{
		Use:   "select",
		Short: "Pick a strategy from trend and IV rank",
		Example: `  advisor select --trend bullish --iv-rank 0.25
  advisor select --trend neutral --iv-rank 0.8 --json`,
		Args: cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			th := a.cfg.Selector
			strategy := selector.Select(models.Trend(trend), ivRank, th)
			bucket := th.Classify(ivRank).String()
			if a.asJSON {
				return a.printJSON(map[string]any{"strategy": strategy, "bucket": bucket})
			}
			a.printf("Strategy: %s\nIV bucket: %s\n", strategy, bucket)
			return nil
		},
	}
	cmd.Flags().StringVar(&trend, "trend", "", "market trend: bullish, bearish or neutral")
	cmd.Flags().Float64Var(&ivRank, "iv-rank", 0, "IV rank in [0,1]")
	_ = cmd.MarkFlagRequired("trend")
	_ = cmd.MarkFlagRequired("iv-rank")
	return cmd
}

func newRiskCmd(a *app) *cobra.Command {
	var (
		description string
		underlying  float64
		delta       float64
		dte         int
		frontDTE    int
		backDTE     int
	)

	cmd := &cobra.Command{
		Use:   "risk <strategy>",
		Short: "Compute the risk profile of a trade description",
		Example: `  advisor risk bull_call_spread --legs "Buy 450.0C @5.9 / Sell 455.0C @3.4"
  advisor risk straddle --legs "Buy 450.0C @5.9 + 450.0P @5.9" --underlying 450 --dte 32`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			strategy := models.StrategyType(strings.ToLower(args[0]))
			parsed := tradedesc.Parse(description, strategy)
			if len(parsed.Skipped) > 0 {
				a.logger.WithField("skipped", parsed.Skipped).Warn("Ignored unparseable tokens")
			}

			mkt := risk.Market{
				UnderlyingPrice: util.FromFloat(underlying),
				DTE:             dte,
				FrontDTE:        frontDTE,
				BackDTE:         backDTE,
			}
			if cmd.Flags().Changed("delta") {
				d := decimal.NewFromFloat(delta)
				mkt.Delta = &d
			}

			m, err := a.calculator().Evaluate(strategy, parsed.Legs, mkt)
			if err != nil {
				return err
			}
			if a.asJSON {
				return a.printJSON(m)
			}
			a.printf("%s", risk.Format(m))
			return nil
		},
	}
	cmd.Flags().StringVar(&description, "legs", "", "trade description, e.g. \"Buy 450.0C @5.9 / Sell 455.0C @3.4\"")
	cmd.Flags().Float64Var(&underlying, "underlying", 0, "underlying price (straddle, long options)")
	cmd.Flags().Float64Var(&delta, "delta", 0, "option delta (long options)")
	cmd.Flags().IntVar(&dte, "dte", 0, "days to expiration (straddle)")
	cmd.Flags().IntVar(&frontDTE, "front-dte", 0, "front month DTE (calendar)")
	cmd.Flags().IntVar(&backDTE, "back-dte", 0, "back month DTE (calendar)")
	_ = cmd.MarkFlagRequired("legs")
	return cmd
}

func newParseCmd(a *app) *cobra.Command {
	var strategy string

	cmd := &cobra.Command{
		Use:     "parse <description>",
		Short:   "Parse a trade description into legs",
		Example: `  advisor parse "Sell 450.0C @5.7 / Buy 2x 455.0C @3.6" --strategy call_ratio_backspread`,
		Args:    cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			res := tradedesc.Parse(args[0], models.StrategyType(strings.ToLower(strategy)))
			if a.asJSON {
				legs := res.Legs
				if legs == nil {
					legs = []models.Leg{}
				}
				return a.printJSON(map[string]any{
					"legs":     legs,
					"skipped":  res.Skipped,
					"complete": res.Complete(),
				})
			}

			a.printf("Legs (%d):\n", len(res.Legs))
			for i, l := range res.Legs {
				a.printf("  %d. %s %dx %s %s @ %s\n", i+1, l.Action, l.Contracts(),
					util.PriceString(l.Strike), l.Type.Name(), util.PriceString(l.Price))
			}
			for _, s := range res.Skipped {
				a.printf("Skipped: %q\n", s)
			}
			if strategy != "" && !res.Complete() {
				a.printf("Incomplete: %s needs %d legs\n", strategy, models.StrategyType(strategy).ExpectedLegs())
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&strategy, "strategy", "", "strategy hint for completeness checks")
	return cmd
}

func newPnLCmd(a *app) *cobra.Command {
	var (
		description string
		strategy    string
		quotes      string
		quantity    int
	)

	cmd := &cobra.Command{
		Use:   "pnl",
		Short: "Mark a trade description to market",
		Long: `Quotes are given per leg in description order, separated by commas. Each quote is
"bid/ask", a single last price, or "-" when the contract has no quote.`,
		Example: `  advisor pnl --legs "Buy 450.0C @5.9 / Sell 455.0C @3.4" --quotes "7.0/7.2,4.4/4.6"`,
		Args:    cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			parsed := tradedesc.Parse(description, models.StrategyType(strategy))
			if len(parsed.Legs) == 0 {
				return fmt.Errorf("no legs in %q", description)
			}
			qs, err := parseQuotes(quotes)
			if err != nil {
				return err
			}
			res, ok := pnl.Calculate(parsed.Legs, qs, quantity)
			if !ok {
				return errors.New("incomplete pricing: every leg needs a quote")
			}
			if a.asJSON {
				return a.printJSON(res)
			}
			a.printf("Entry cost: $%s\n", res.EntryCost.StringFixed(2))
			a.printf("Exit value: $%s\n", res.ExitValue.StringFixed(2))
			a.printf("P&L:        $%s (%s%%)\n", res.PnL.StringFixed(2), res.PnLPct.StringFixed(2))
			return nil
		},
	}
	cmd.Flags().StringVar(&description, "legs", "", "trade description")
	cmd.Flags().StringVar(&strategy, "strategy", "", "strategy hint")
	cmd.Flags().StringVar(&quotes, "quotes", "", "comma-separated quotes per leg")
	cmd.Flags().IntVar(&quantity, "quantity", 1, "number of structures")
	_ = cmd.MarkFlagRequired("legs")
	_ = cmd.MarkFlagRequired("quotes")
	return cmd
}

// parseQuotes reads "bid/ask", "last" or "-" per comma-separated entry.
func parseQuotes(s string) ([]*models.Quote, error) {
	var out []*models.Quote
	for i, field := range strings.Split(s, ",") {
		field = strings.TrimSpace(field)
		if field == "-" || field == "" {
			out = append(out, nil)
			continue
		}
		if bid, ask, ok := strings.Cut(field, "/"); ok {
			b, err1 := decimal.NewFromString(strings.TrimSpace(bid))
			k, err2 := decimal.NewFromString(strings.TrimSpace(ask))
			if err := errors.Join(err1, err2); err != nil {
				return nil, fmt.Errorf("quote %d %q: %w", i+1, field, err)
			}
			out = append(out, &models.Quote{Bid: b, Ask: k})
			continue
		}
		last, err := decimal.NewFromString(field)
		if err != nil {
			return nil, fmt.Errorf("quote %d %q: %w", i+1, field, err)
		}
		out = append(out, &models.Quote{Last: last})
	}
	return out, nil
}
