// Package config provides configuration management for the options advisor.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	yaml "gopkg.in/yaml.v3"

	"github.com/eddiefleurent/options_advisor/internal/builder"
	"github.com/eddiefleurent/options_advisor/internal/risk"
	"github.com/eddiefleurent/options_advisor/internal/selector"
	"github.com/eddiefleurent/options_advisor/internal/signals"
)

// Defaults applied to unset fields.
const (
	defaultIVLookbackDays = 252
	defaultIVFallbackRank = 0.55
	defaultIVMinReadings  = 5

	defaultMinProbProfit = 0.40
	defaultQuantity      = 1

	defaultMaxRetries     = 2
	defaultInitialBackoff = "500ms"
	defaultMaxBackoff     = "5s"
	defaultTimeout        = "10s"
	defaultConcurrency    = 4

	defaultDashboardPort = 8080
)

// Provider names for market data.
const (
	ProviderMock     = "mock"
	ProviderSnapshot = "snapshot"
)

// Config represents the complete application configuration.
type Config struct {
	Environment  EnvironmentConfig   `yaml:"environment"`
	Selector     selector.Thresholds `yaml:"selector"`
	Heuristics   HeuristicsConfig    `yaml:"heuristics"`
	Construction ConstructionConfig  `yaml:"construction"`
	Trend        signals.TrendConfig `yaml:"trend"`
	IV           IVConfig            `yaml:"iv"`
	Risk         RiskConfig          `yaml:"risk"`
	MarketData   MarketDataConfig    `yaml:"market_data"`
	Storage      StorageConfig       `yaml:"storage"`
	Journal      JournalConfig       `yaml:"journal"`
	Dashboard    DashboardConfig     `yaml:"dashboard"`
	Watchlist    []string            `yaml:"watchlist"`
}

// EnvironmentConfig defines the environment settings.
type EnvironmentConfig struct {
	Mode     string `yaml:"mode"`      // paper only
	LogLevel string `yaml:"log_level"` // debug | info | warn | error
}

// HeuristicsConfig holds the probability-of-profit proxies.
type HeuristicsConfig struct {
	DefaultProbProfit    float64 `yaml:"default_prob_profit"`
	StraddleProbProfit   float64 `yaml:"straddle_prob_profit"`
	BackspreadProbProfit float64 `yaml:"backspread_prob_profit"`
	CalendarProbProfit   float64 `yaml:"calendar_prob_profit"`
	CalendarProfitFactor float64 `yaml:"calendar_profit_factor"`
}

// ConstructionConfig controls how legs are picked from a chain.
type ConstructionConfig = builder.Config

// IVConfig controls IV rank estimation.
type IVConfig struct {
	LookbackDays int     `yaml:"lookback_days"`
	FallbackRank float64 `yaml:"fallback_rank"`
	MinReadings  int     `yaml:"min_readings"`
}

// RiskConfig defines the pre-trade risk gate.
type RiskConfig struct {
	MinProbProfit   float64 `yaml:"min_prob_profit"`
	MaxLossPerTrade float64 `yaml:"max_loss_per_trade"` // dollars per contract, 0 disables
	Quantity        int     `yaml:"quantity"`
}

// MarketDataConfig selects and tunes the quote source.
type MarketDataConfig struct {
	Provider       string `yaml:"provider"` // mock | snapshot
	SnapshotPath   string `yaml:"snapshot_path"`
	MaxRetries     int    `yaml:"max_retries"`
	InitialBackoff string `yaml:"initial_backoff"`
	MaxBackoff     string `yaml:"max_backoff"`
	Timeout        string `yaml:"timeout"`
	Concurrency    int    `yaml:"concurrency"`
}

// StorageConfig defines storage settings for trade data.
type StorageConfig struct {
	Path string `yaml:"path"`
}

// JournalConfig defines where CSV journals are written.
type JournalConfig struct {
	Dir string `yaml:"dir"`
}

// DashboardConfig defines the HTTP API settings.
type DashboardConfig struct {
	Port      int    `yaml:"port"`
	AuthToken string `yaml:"auth_token"`
}

// Default returns a complete paper-mode configuration.
func Default() *Config {
	c := &Config{Environment: EnvironmentConfig{Mode: "paper", LogLevel: "info"}}
	c.Normalize()
	return c
}

// Load reads and parses the configuration file from the specified path.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = "config.yaml"
	}

	data, err := os.ReadFile(configPath) // #nosec G304 -- configPath is a user-provided config file path
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	var config Config
	dec := yaml.NewDecoder(strings.NewReader(expanded))
	dec.KnownFields(true)
	if err := dec.Decode(&config); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	config.Normalize()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

// Normalize fills unset fields with defaults.
func (c *Config) Normalize() {
	if c.Environment.Mode == "" {
		c.Environment.Mode = "paper"
	}
	if c.Environment.LogLevel == "" {
		c.Environment.LogLevel = "info"
	}
	if c.Selector.Low == 0 && c.Selector.High == 0 {
		c.Selector = selector.DefaultThresholds()
	}
	c.normalizeHeuristics()
	c.normalizeConstruction()

	def := signals.DefaultTrendConfig()
	setInt(&c.Trend.ShortWindow, def.ShortWindow)
	setInt(&c.Trend.LongWindow, def.LongWindow)
	setFloat(&c.Trend.BullishThreshold, def.BullishThreshold)
	setFloat(&c.Trend.BearishThreshold, def.BearishThreshold)
	setInt(&c.Trend.LookbackDays, def.LookbackDays)

	setInt(&c.IV.LookbackDays, defaultIVLookbackDays)
	setFloat(&c.IV.FallbackRank, defaultIVFallbackRank)
	setInt(&c.IV.MinReadings, defaultIVMinReadings)

	setFloat(&c.Risk.MinProbProfit, defaultMinProbProfit)
	setInt(&c.Risk.Quantity, defaultQuantity)

	if c.MarketData.Provider == "" {
		c.MarketData.Provider = ProviderMock
	}
	setInt(&c.MarketData.MaxRetries, defaultMaxRetries)
	setString(&c.MarketData.InitialBackoff, defaultInitialBackoff)
	setString(&c.MarketData.MaxBackoff, defaultMaxBackoff)
	setString(&c.MarketData.Timeout, defaultTimeout)
	setInt(&c.MarketData.Concurrency, defaultConcurrency)

	setString(&c.Storage.Path, "trades.json")
	setString(&c.Journal.Dir, "journal")
	setInt(&c.Dashboard.Port, defaultDashboardPort)
}

func (c *Config) normalizeHeuristics() {
	def := risk.DefaultHeuristics()
	setFloat(&c.Heuristics.DefaultProbProfit, def.DefaultProbProfit.InexactFloat64())
	setFloat(&c.Heuristics.StraddleProbProfit, def.StraddleProbProfit.InexactFloat64())
	setFloat(&c.Heuristics.BackspreadProbProfit, def.BackspreadProbProfit.InexactFloat64())
	setFloat(&c.Heuristics.CalendarProbProfit, def.CalendarProbProfit.InexactFloat64())
	setFloat(&c.Heuristics.CalendarProfitFactor, def.CalendarProfitFactor.InexactFloat64())
}

func (c *Config) normalizeConstruction() {
	k, def := &c.Construction, builder.DefaultConfig()
	setFloat(&k.DeltaATM, def.DeltaATM)
	setFloat(&k.DeltaShortLeg, def.DeltaShortLeg)
	setFloat(&k.DeltaLongOption, def.DeltaLongOption)
	setInt(&k.SpreadStrikeWidth, def.SpreadStrikeWidth)
	setInt(&k.RatioShortCount, def.RatioShortCount)
	setInt(&k.RatioLongCount, def.RatioLongCount)
	setInt(&k.TargetDTE, def.TargetDTE)
	setInt(&k.CalendarFrontDTE, def.CalendarFrontDTE)
	setInt(&k.CalendarBackDTE, def.CalendarBackDTE)
	setInt(&k.CalendarDTETolerance, def.CalendarDTETolerance)
	setInt(&k.MinVolume, def.MinVolume)
	setFloat(&k.MaxSpreadPct, def.MaxSpreadPct)
}

// Validate checks that all configuration values are valid and consistent.
func (c *Config) Validate() error {
	if c.Environment.Mode != "paper" {
		return fmt.Errorf("environment.mode must be 'paper': live execution is not supported")
	}
	if _, err := logrus.ParseLevel(c.Environment.LogLevel); err != nil {
		return fmt.Errorf("environment.log_level invalid: %w", err)
	}

	if c.Selector.Low >= c.Selector.High {
		return fmt.Errorf("selector.iv_low_threshold (%.2f) must be < selector.iv_high_threshold (%.2f)",
			c.Selector.Low, c.Selector.High)
	}

	for name, p := range map[string]float64{
		"heuristics.default_prob_profit":    c.Heuristics.DefaultProbProfit,
		"heuristics.straddle_prob_profit":   c.Heuristics.StraddleProbProfit,
		"heuristics.backspread_prob_profit": c.Heuristics.BackspreadProbProfit,
		"heuristics.calendar_prob_profit":   c.Heuristics.CalendarProbProfit,
		"risk.min_prob_profit":              c.Risk.MinProbProfit,
		"iv.fallback_rank":                  c.IV.FallbackRank,
	} {
		if p < 0 || p > 1 {
			return fmt.Errorf("%s must be between 0 and 1", name)
		}
	}
	if c.Heuristics.CalendarProfitFactor <= 0 {
		return fmt.Errorf("heuristics.calendar_profit_factor must be > 0")
	}

	if err := c.validateConstruction(); err != nil {
		return err
	}

	if c.Trend.ShortWindow >= c.Trend.LongWindow {
		return fmt.Errorf("trend.sma_short (%d) must be < trend.sma_long (%d)", c.Trend.ShortWindow, c.Trend.LongWindow)
	}
	if c.Trend.BearishThreshold >= c.Trend.BullishThreshold {
		return fmt.Errorf("trend.bearish_threshold must be < trend.bullish_threshold")
	}
	if c.Trend.LookbackDays < c.Trend.LongWindow {
		return fmt.Errorf("trend.lookback_days (%d) must cover trend.sma_long (%d)", c.Trend.LookbackDays, c.Trend.LongWindow)
	}
	if c.IV.MinReadings < 1 {
		return fmt.Errorf("iv.min_readings must be >= 1")
	}

	if c.Risk.MaxLossPerTrade < 0 {
		return fmt.Errorf("risk.max_loss_per_trade must be >= 0")
	}
	if c.Risk.Quantity < 1 {
		return fmt.Errorf("risk.quantity must be >= 1")
	}

	switch c.MarketData.Provider {
	case ProviderMock:
	case ProviderSnapshot:
		if c.MarketData.SnapshotPath == "" {
			return fmt.Errorf("market_data.snapshot_path is required for the snapshot provider")
		}
	default:
		return fmt.Errorf("market_data.provider must be '%s' or '%s'", ProviderMock, ProviderSnapshot)
	}
	for name, v := range map[string]string{
		"market_data.initial_backoff": c.MarketData.InitialBackoff,
		"market_data.max_backoff":     c.MarketData.MaxBackoff,
		"market_data.timeout":         c.MarketData.Timeout,
	} {
		if _, err := time.ParseDuration(v); err != nil {
			return fmt.Errorf("%s invalid: %w", name, err)
		}
	}
	if c.MarketData.MaxRetries < 0 {
		return fmt.Errorf("market_data.max_retries must be >= 0")
	}
	if c.MarketData.Concurrency < 1 {
		return fmt.Errorf("market_data.concurrency must be >= 1")
	}

	for i, s := range c.Watchlist {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("watchlist[%d] is empty", i)
		}
	}
	if c.Dashboard.Port <= 0 || c.Dashboard.Port > 65535 {
		return fmt.Errorf("dashboard.port must be between 1 and 65535")
	}
	return nil
}

func (c *Config) validateConstruction() error {
	k := c.Construction
	for name, v := range map[string]float64{
		"construction.delta_atm":         k.DeltaATM,
		"construction.delta_short_leg":   k.DeltaShortLeg,
		"construction.delta_long_option": k.DeltaLongOption,
	} {
		if v <= 0 || v >= 1 {
			return fmt.Errorf("%s must be in (0,1)", name)
		}
	}
	if k.SpreadStrikeWidth < 1 {
		return fmt.Errorf("construction.spread_strike_width must be >= 1")
	}
	if k.RatioShortCount < 1 || k.RatioLongCount <= k.RatioShortCount {
		return fmt.Errorf("construction.ratio_long_count (%d) must exceed construction.ratio_short_count (%d) >= 1",
			k.RatioLongCount, k.RatioShortCount)
	}
	if k.TargetDTE < 1 {
		return fmt.Errorf("construction.target_dte must be >= 1")
	}
	if k.CalendarFrontDTE < 1 || k.CalendarFrontDTE >= k.CalendarBackDTE {
		return fmt.Errorf("construction.calendar_front_dte (%d) must be >= 1 and < construction.calendar_back_dte (%d)",
			k.CalendarFrontDTE, k.CalendarBackDTE)
	}
	if k.CalendarDTETolerance < 0 {
		return fmt.Errorf("construction.calendar_dte_tolerance must be >= 0")
	}
	if k.MinVolume < 0 {
		return fmt.Errorf("construction.min_volume must be >= 0")
	}
	if k.MaxSpreadPct <= 0 {
		return fmt.Errorf("construction.max_spread_pct must be > 0")
	}
	return nil
}

// IsPaperTrading returns true if the advisor is configured for paper trading.
func (c *Config) IsPaperTrading() bool {
	return c.Environment.Mode == "paper"
}

// RiskHeuristics converts the configured proxies for the risk calculator.
func (c *Config) RiskHeuristics() risk.Heuristics {
	h := c.Heuristics
	return risk.Heuristics{
		DefaultProbProfit:    decimal.NewFromFloat(h.DefaultProbProfit),
		StraddleProbProfit:   decimal.NewFromFloat(h.StraddleProbProfit),
		BackspreadProbProfit: decimal.NewFromFloat(h.BackspreadProbProfit),
		CalendarProbProfit:   decimal.NewFromFloat(h.CalendarProbProfit),
		CalendarProfitFactor: decimal.NewFromFloat(h.CalendarProfitFactor),
	}
}

// Durations returns the parsed market data timings. Validate has already checked them.
func (c *Config) Durations() (initialBackoff, maxBackoff, timeout time.Duration) {
	initialBackoff = parseDurationOr(c.MarketData.InitialBackoff, 500*time.Millisecond)
	maxBackoff = parseDurationOr(c.MarketData.MaxBackoff, 5*time.Second)
	timeout = parseDurationOr(c.MarketData.Timeout, 10*time.Second)
	return initialBackoff, maxBackoff, timeout
}

// NewLogger builds a logrus logger at the configured level; debug forces debug level.
func (c *Config) NewLogger(debug bool) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	level, err := logrus.ParseLevel(c.Environment.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	if debug {
		level = logrus.DebugLevel
	}
	logger.SetLevel(level)
	return logger
}

func parseDurationOr(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

func setInt(v *int, def int) {
	if *v == 0 {
		*v = def
	}
}

func setFloat(v *float64, def float64) {
	if *v == 0 {
		*v = def
	}
}

func setString(v *string, def string) {
	if *v == "" {
		*v = def
	}
}
