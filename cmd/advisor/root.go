package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/eddiefleurent/options_advisor/internal/builder"
	"github.com/eddiefleurent/options_advisor/internal/config"
	"github.com/eddiefleurent/options_advisor/internal/journal"
	"github.com/eddiefleurent/options_advisor/internal/marketdata"
	"github.com/eddiefleurent/options_advisor/internal/mock"
	"github.com/eddiefleurent/options_advisor/internal/retry"
	"github.com/eddiefleurent/options_advisor/internal/risk"
	"github.com/eddiefleurent/options_advisor/internal/storage"
)

const defaultConfigPath = "config.yaml"

// app holds what every command needs once the configuration is loaded.
type app struct {
	configPath string
	debug      bool
	asJSON     bool

	in     io.Reader
	out    io.Writer
	errOut io.Writer

	cfg    *config.Config
	logger *logrus.Logger
	now    func() time.Time
}

func newRootCmd(in io.Reader, out, errOut io.Writer) *cobra.Command {
	a := &app{in: in, out: out, errOut: errOut, now: time.Now}

	root := &cobra.Command{
		Use:   "advisor",
		Short: "Options strategy selection and risk engine",
		Long: `advisor picks an options strategy from trend and IV rank, builds it from the
option chain, computes its risk profile and tracks it through a dry-run lifecycle.

Nothing is ever sent to a broker.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(cmd)
		},
	}
	root.SetIn(in)
	root.SetOut(out)
	root.SetErr(errOut)

	root.PersistentFlags().StringVar(&a.configPath, "config", defaultConfigPath, "path to configuration file")
	root.PersistentFlags().BoolVar(&a.debug, "debug", false, "enable debug logging")
	root.PersistentFlags().BoolVar(&a.asJSON, "json", false, "print results as JSON")

	root.AddCommand(
		newSelectCmd(a),
		newRiskCmd(a),
		newParseCmd(a),
		newPnLCmd(a),
		newScanCmd(a),
		newAnalyzeCmd(a),
		newExecuteCmd(a),
		newServeCmd(a),
		newVersionCmd(a),
	)
	return root
}

// load reads the configuration. A missing default config file is not an error: the
// built-in paper defaults apply.
func (a *app) load(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		if !cmd.Flags().Changed("config") && errors.Is(err, os.ErrNotExist) {
			cfg = config.Default()
		} else {
			return err
		}
	}
	a.cfg = cfg
	a.logger = cfg.NewLogger(a.debug)
	a.logger.SetOutput(a.errOut)
	a.logger.Debugf("Configuration loaded (provider=%s, storage=%s)", cfg.MarketData.Provider, cfg.Storage.Path)
	return nil
}

func (a *app) calculator() *risk.Calculator {
	return risk.NewCalculator(a.cfg.RiskHeuristics())
}

func (a *app) builder() *builder.Builder {
	return builder.New(a.cfg.Construction, a.calculator(), builder.WithClock(a.now), builder.WithLogger(a.logger))
}

func (a *app) journal() *journal.Journal {
	return journal.New(a.cfg.Journal.Dir)
}

func (a *app) store() (storage.Interface, error) {
	return storage.NewStorage(a.cfg.Storage.Path)
}

// source builds the configured quote source behind retries and a circuit breaker. A
// snapshot with a capture date moves the clock to that date.
func (a *app) source() (marketdata.Source, error) {
	var src marketdata.Source
	switch a.cfg.MarketData.Provider {
	case config.ProviderSnapshot:
		snap, err := marketdata.LoadSnapshot(a.cfg.MarketData.SnapshotPath)
		if err != nil {
			return nil, err
		}
		if asOf, ok := snap.AsOf(); ok {
			a.now = func() time.Time { return asOf }
			a.logger.Infof("Using snapshot as of %s", asOf.Format(journal.DateLayout))
		}
		src = snap
	default:
		a.logger.Info("Using synthetic market data (mock provider)")
		src = mock.NewDataProvider()
	}

	initialBackoff, maxBackoff, timeout := a.cfg.Durations()
	client := retry.NewClient(src, a.logger, retry.Config{
		MaxRetries:     a.cfg.MarketData.MaxRetries,
		InitialBackoff: initialBackoff,
		MaxBackoff:     maxBackoff,
		Timeout:        timeout,
	})
	return marketdata.NewCircuitBreakerSource(client, marketdata.DefaultCircuitBreakerSettings(), a.logger), nil
}

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (a *app) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return nil
		},
		RunE: func(*cobra.Command, []string) error {
			if a.asJSON {
				return a.printJSON(map[string]string{"version": version, "commit": commit})
			}
			a.printf("advisor %s (%s)\n", version, commit)
			return nil
		},
	}
}
