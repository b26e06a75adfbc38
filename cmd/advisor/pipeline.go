package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/eddiefleurent/options_advisor/internal/analyzer"
	"github.com/eddiefleurent/options_advisor/internal/executor"
	"github.com/eddiefleurent/options_advisor/internal/journal"
	"github.com/eddiefleurent/options_advisor/internal/models"
	"github.com/eddiefleurent/options_advisor/internal/scanner"
)

// interruptible cancels the command context on SIGINT or SIGTERM.
func interruptible(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
}

func newScanCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "scan [symbols...]",
		Short: "Generate recommendations for the watchlist",
		Long: `scan reads trend and IV rank for every symbol, selects a strategy, builds it from
the option chain and stores the result as a recommended trade. Recommendations are
appended to the recommendations journal.`,
		Example: `  advisor scan
  advisor scan SPY QQQ`,
		RunE: func(cmd *cobra.Command, args []string) error {
			symbols := args
			if len(symbols) == 0 {
				symbols = a.cfg.Watchlist
			}
			if len(symbols) == 0 {
				return errors.New("no symbols: pass them as arguments or set watchlist in the config")
			}

			src, err := a.source()
			if err != nil {
				return err
			}
			store, err := a.store()
			if err != nil {
				return err
			}

			cfg := a.cfg
			s := scanner.New(scanner.Config{
				Trend:          cfg.Trend,
				Thresholds:     cfg.Selector,
				IVLookbackDays: cfg.IV.LookbackDays,
				IVMinReadings:  cfg.IV.MinReadings,
				IVTargetDTE:    cfg.Construction.TargetDTE,
				IVFallbackRank: cfg.IV.FallbackRank,
				Quantity:       cfg.Risk.Quantity,
				Concurrency:    cfg.MarketData.Concurrency,
			}, src, store, a.builder(),
				scanner.WithJournal(a.journal()),
				scanner.WithLogger(a.logger),
				scanner.WithClock(a.now),
			)

			ctx, stop := interruptible(cmd.Context())
			defer stop()
			results, err := s.Scan(ctx, symbols)
			if results == nil && err != nil {
				return err
			}

			if a.asJSON {
				if jerr := a.printJSON(scanView(results)); jerr != nil {
					return jerr
				}
				return err
			}
			printScan(a, results)
			return err
		},
	}
}

type scanRow struct {
	Symbol   string              `json:"symbol"`
	Trend    models.Trend        `json:"trend,omitempty"`
	IVRank   float64             `json:"iv_rank"`
	Fallback bool                `json:"iv_rank_fallback,omitempty"`
	Strategy models.StrategyType `json:"strategy"`
	Trade    *models.TradeRecord `json:"trade,omitempty"`
	Error    string              `json:"error,omitempty"`
}

func scanView(results []scanner.Result) []scanRow {
	rows := make([]scanRow, len(results))
	for i, r := range results {
		rows[i] = scanRow{
			Symbol: r.Symbol, Trend: r.Trend, IVRank: r.IVRank, Fallback: r.IVRankFallback,
			Strategy: r.Strategy, Trade: r.Trade,
		}
		if r.Err != nil {
			rows[i].Error = r.Err.Error()
		}
	}
	return rows
}

func printScan(a *app, results []scanner.Result) {
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SYMBOL\tTREND\tIV RANK\tSTRATEGY\tTRADE")
	for _, r := range results {
		rank := fmt.Sprintf("%.2f", r.IVRank)
		if r.IVRankFallback {
			rank += "*"
		}
		trade := "-"
		switch {
		case r.Trade != nil:
			trade = r.Trade.Description
		case r.Err != nil:
			trade = "error: " + r.Err.Error()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.Symbol, r.Trend, rank, r.Strategy, trade)
	}
	_ = tw.Flush()
	a.printf("(* IV rank fallback: not enough IV history)\n")
}

func newAnalyzeCmd(a *app) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Mark open trades to market and summarize",
		Long: `analyze prices every recommended and simulated trade against the current chain.
Trades past expiry are closed as expired. With --file the rows of a recommendations
CSV are analyzed instead and the store is left untouched.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			src, err := a.source()
			if err != nil {
				return err
			}
			store, err := a.store()
			if err != nil {
				return err
			}
			an := analyzer.New(src,
				analyzer.WithStore(store),
				analyzer.WithJournal(a.journal()),
				analyzer.WithLogger(a.logger),
				analyzer.WithClock(a.now),
				analyzer.WithConcurrency(a.cfg.MarketData.Concurrency),
			)

			ctx, stop := interruptible(cmd.Context())
			defer stop()

			var results []models.AnalysisResult
			if file != "" {
				results, err = an.AnalyzeJournalFile(ctx, file)
			} else {
				results, err = an.AnalyzeOpen(ctx)
				if err == nil {
					err = store.Save()
				}
			}
			if err != nil && results == nil {
				return err
			}

			summary := analyzer.Summarize(results)
			if a.asJSON {
				if jerr := a.printJSON(map[string]any{"results": results, "summary": summary}); jerr != nil {
					return jerr
				}
				return err
			}
			for _, r := range results {
				a.printf("%-6s %-22s %-8s exp %s  P&L $%s (%s%%)\n", r.Symbol, r.Strategy, r.Status,
					r.Expiry.Format(journal.DateLayout), r.PnL.StringFixed(2), r.PnLPct.StringFixed(2))
			}
			a.printf("\n%s", summary.Format())
			return err
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "recommendations CSV to analyze instead of the trade store")
	return cmd
}

func newExecuteCmd(a *app) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "execute",
		Short: "Approve recommended trades as dry-run simulations",
		Long: `execute applies the risk gate to every pending recommendation and asks for
approval. Approved trades are simulated with a DRY_RUN order id and journaled.
Nothing is sent to a broker.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := a.store()
			if err != nil {
				return err
			}
			var approver executor.Approver = executor.NewPrompt(a.in, a.out)
			if yes {
				approver = executor.AutoApprove
			}
			ex := executor.New(executor.Config{
				MinProbProfit:   decimal.NewFromFloat(a.cfg.Risk.MinProbProfit),
				MaxLossPerTrade: decimal.NewFromFloat(a.cfg.Risk.MaxLossPerTrade),
			}, store, approver,
				executor.WithJournal(a.journal()),
				executor.WithLogger(a.logger),
				executor.WithClock(a.now),
			)

			ctx, stop := interruptible(cmd.Context())
			defer stop()
			outcomes, err := ex.Execute(ctx)

			if a.asJSON {
				if outcomes == nil {
					outcomes = []executor.Outcome{}
				}
				if jerr := a.printJSON(outcomes); jerr != nil {
					return jerr
				}
				return err
			}
			if len(outcomes) == 0 {
				a.printf("No pending recommendations\n")
			}
			for _, o := range outcomes {
				line := fmt.Sprintf("%-9s %-6s %s", o.Status, o.Trade.Symbol, o.Trade.Description)
				if o.OrderID != "" {
					line += "  order " + o.OrderID
				}
				if o.Reason != "" {
					line += "  (" + o.Reason + ")"
				}
				a.printf("%s\n", line)
			}
			return err
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "approve every trade that passes the risk gate")
	return cmd
}
