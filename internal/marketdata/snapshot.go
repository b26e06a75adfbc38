package marketdata

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	yaml "gopkg.in/yaml.v3"

	"github.com/eddiefleurent/options_advisor/internal/models"
	"github.com/eddiefleurent/options_advisor/internal/util"
)

const dateLayout = "2006-01-02"

// Snapshot is a point-in-time market capture, as stored on disk.
type Snapshot struct {
	AsOf    string                    `yaml:"as_of"`
	Symbols map[string]SymbolSnapshot `yaml:"symbols"`
}

// SymbolSnapshot is the captured market of one underlying.
type SymbolSnapshot struct {
	Price  float64                     `yaml:"price"`
	Closes []float64                   `yaml:"closes"`
	Chains map[string][]ContractRecord `yaml:"chains"` // keyed by expiry date
}

// ContractRecord is one option contract in a snapshot file.
type ContractRecord struct {
	Strike float64 `yaml:"strike"`
	Type   string  `yaml:"type"` // C | P
	Bid    float64 `yaml:"bid"`
	Ask    float64 `yaml:"ask"`
	Last   float64 `yaml:"last"`
	Delta  float64 `yaml:"delta"`
	IV     float64 `yaml:"iv"`
	Volume int64   `yaml:"volume"`
}

// SnapshotSource serves quotes from a Snapshot. It is read-only after construction.
type SnapshotSource struct {
	snap Snapshot
}

// Ensure SnapshotSource implements Source at compile time.
var _ Source = (*SnapshotSource)(nil)

// LoadSnapshot reads a YAML snapshot file.
func LoadSnapshot(path string) (*SnapshotSource, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path comes from configuration
	if err != nil {
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}
	var snap Snapshot
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&snap); err != nil {
		return nil, fmt.Errorf("parsing snapshot: %w", err)
	}
	return NewSnapshotSource(snap)
}

// NewSnapshotSource validates a snapshot and serves it.
func NewSnapshotSource(snap Snapshot) (*SnapshotSource, error) {
	for symbol, s := range snap.Symbols {
		for expiry, contracts := range s.Chains {
			if _, err := time.Parse(dateLayout, expiry); err != nil {
				return nil, fmt.Errorf("symbol %s: expiry %q: %w", symbol, expiry, err)
			}
			for i, c := range contracts {
				if !models.OptionType(c.Type).Valid() {
					return nil, fmt.Errorf("symbol %s expiry %s contract %d: type must be C or P, got %q",
						symbol, expiry, i, c.Type)
				}
			}
		}
	}
	return &SnapshotSource{snap: snap}, nil
}

// AsOf returns the capture date, or false when the snapshot does not carry one.
func (s *SnapshotSource) AsOf() (time.Time, bool) {
	if s.snap.AsOf == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(dateLayout, s.snap.AsOf)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func (s *SnapshotSource) symbol(symbol string) (SymbolSnapshot, error) {
	sym, ok := s.snap.Symbols[symbol]
	if !ok {
		return SymbolSnapshot{}, fmt.Errorf("%w: %s", ErrSymbolNotFound, symbol)
	}
	return sym, nil
}

// GetUnderlyingPrice implements Source.
func (s *SnapshotSource) GetUnderlyingPrice(_ context.Context, symbol string) (decimal.Decimal, error) {
	sym, err := s.symbol(symbol)
	if err != nil {
		return decimal.Zero, err
	}
	return util.FromFloat(sym.Price), nil
}

// GetDailyCloses implements Source.
func (s *SnapshotSource) GetDailyCloses(_ context.Context, symbol string, days int) ([]float64, error) {
	sym, err := s.symbol(symbol)
	if err != nil {
		return nil, err
	}
	closes := sym.Closes
	if days > 0 && len(closes) > days {
		closes = closes[len(closes)-days:]
	}
	return append([]float64(nil), closes...), nil
}

// GetExpirations implements Source.
func (s *SnapshotSource) GetExpirations(_ context.Context, symbol string) ([]time.Time, error) {
	sym, err := s.symbol(symbol)
	if err != nil {
		return nil, err
	}
	out := make([]time.Time, 0, len(sym.Chains))
	for expiry := range sym.Chains {
		t, _ := time.Parse(dateLayout, expiry)
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out, nil
}

// GetOptionChain implements Source.
func (s *SnapshotSource) GetOptionChain(_ context.Context, symbol string, expiry time.Time) ([]OptionQuote, error) {
	sym, err := s.symbol(symbol)
	if err != nil {
		return nil, err
	}
	key := expiry.UTC().Format(dateLayout)
	contracts, ok := sym.Chains[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s %s", ErrExpiryNotFound, symbol, key)
	}
	exp, _ := time.Parse(dateLayout, key)
	chain := make([]OptionQuote, 0, len(contracts))
	for _, c := range contracts {
		strike := decimal.NewFromFloat(c.Strike)
		chain = append(chain, OptionQuote{
			Symbol:     OCCSymbol(symbol, exp, models.OptionType(c.Type), strike),
			Underlying: symbol,
			Strike:     strike,
			Type:       models.OptionType(c.Type),
			Expiry:     exp,
			Bid:        util.FromFloat(c.Bid),
			Ask:        util.FromFloat(c.Ask),
			Last:       util.FromFloat(c.Last),
			Delta:      c.Delta,
			IV:         c.IV,
			Volume:     c.Volume,
		})
	}
	return chain, nil
}

// OCCSymbol builds the OCC option symbol, e.g. SPY250417C00450000.
func OCCSymbol(underlying string, expiry time.Time, typ models.OptionType, strike decimal.Decimal) string {
	return fmt.Sprintf("%s%s%s%08d", underlying, expiry.Format("060102"), typ,
		strike.Mul(decimal.NewFromInt(1000)).Round(0).IntPart())
}
