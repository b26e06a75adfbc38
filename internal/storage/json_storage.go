package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/eddiefleurent/options_advisor/internal/models"
)

const dateLayout = "2006-01-02"

// JSONStorage keeps every trade and IV reading in one JSON document.
type JSONStorage struct {
	mu       sync.RWMutex
	filepath string
	data     *Data
}

// Data is the persisted document.
type Data struct {
	Trades      []*models.TradeRecord         `json:"trades"`
	DailyPnL    map[string]decimal.Decimal    `json:"daily_pnl"`
	Statistics  *Statistics                   `json:"statistics"`
	IVReadings  map[string][]models.IVReading `json:"iv_readings"`
	LastUpdated time.Time                     `json:"last_updated"`
}

func newData() *Data {
	return &Data{
		DailyPnL:   make(map[string]decimal.Decimal),
		Statistics: &Statistics{},
		IVReadings: make(map[string][]models.IVReading),
	}
}

// NewJSONStorage opens the store at path, loading it when the file exists.
func NewJSONStorage(path string) (*JSONStorage, error) {
	s := &JSONStorage{
		filepath: path,
		data:     newData(),
	}

	if _, err := os.Stat(path); err == nil {
		if err := s.Load(); err != nil {
			return nil, fmt.Errorf("loading storage: %w", err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("checking storage file: %w", err)
	}

	return s, nil
}

// Load replaces the in-memory state with the file contents.
func (s *JSONStorage) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(s.filepath)
	if err != nil {
		return err
	}

	data := newData()
	if err := json.Unmarshal(raw, data); err != nil {
		return fmt.Errorf("decoding %s: %w", s.filepath, err)
	}
	if data.DailyPnL == nil {
		data.DailyPnL = make(map[string]decimal.Decimal)
	}
	if data.Statistics == nil {
		data.Statistics = &Statistics{}
	}
	if data.IVReadings == nil {
		data.IVReadings = make(map[string][]models.IVReading)
	}
	s.data = data
	return nil
}

// Save writes the document atomically.
func (s *JSONStorage) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked()
}

func (s *JSONStorage) saveLocked() error {
	s.data.LastUpdated = time.Now().UTC()

	raw, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding storage: %w", err)
	}

	if dir := filepath.Dir(s.filepath); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("creating storage dir: %w", err)
		}
	}

	// Write to temp file first
	tmpFile := s.filepath + ".tmp"
	if err := os.WriteFile(tmpFile, raw, 0o600); err != nil {
		return err
	}

	// Atomic rename
	return os.Rename(tmpFile, s.filepath)
}

func (s *JSONStorage) indexLocked(id string) int {
	for i, t := range s.data.Trades {
		if t.ID == id {
			return i
		}
	}
	return -1
}

// AddTrade stores a new trade and persists.
func (s *JSONStorage) AddTrade(trade *models.TradeRecord) error {
	if trade == nil || trade.ID == "" {
		return errors.New("trade must have an ID")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexLocked(trade.ID) >= 0 {
		return fmt.Errorf("%w: %s", ErrDuplicateTrade, trade.ID)
	}
	s.data.Trades = append(s.data.Trades, trade.Clone())
	return s.saveLocked()
}

// GetTrade returns a copy of the trade with the given ID.
func (s *JSONStorage) GetTrade(id string) (*models.TradeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := s.indexLocked(id)
	if i < 0 {
		return nil, fmt.Errorf("%w: %s", ErrTradeNotFound, id)
	}
	return s.data.Trades[i].Clone(), nil
}

// UpdateTrade replaces a stored trade and persists.
func (s *JSONStorage) UpdateTrade(trade *models.TradeRecord) error {
	if trade == nil {
		return errors.New("trade is nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(trade.ID)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrTradeNotFound, trade.ID)
	}
	s.data.Trades[i] = trade.Clone()
	return s.saveLocked()
}

// GetTrades returns copies of all trades, oldest first.
func (s *JSONStorage) GetTrades() []models.TradeRecord {
	return s.GetTradesByState()
}

// GetTradesByState returns copies of the trades in any of states; no states means all.
func (s *JSONStorage) GetTradesByState(states ...models.TradeState) []models.TradeRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.TradeRecord, 0, len(s.data.Trades))
	for _, t := range s.data.Trades {
		if matchesState(t.State, states) {
			out = append(out, *t.Clone())
		}
	}
	return out
}

func matchesState(state models.TradeState, states []models.TradeState) bool {
	if len(states) == 0 {
		return true
	}
	for _, s := range states {
		if s == state {
			return true
		}
	}
	return false
}

// CloseTrade transitions the trade and books realizedPnL. Rejected trades carry no P&L.
func (s *JSONStorage) CloseTrade(id string, to models.TradeState, reason string, realizedPnL decimal.Decimal) error {
	if !to.IsTerminal() {
		return fmt.Errorf("cannot close trade into non-terminal state %s", to)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrTradeNotFound, id)
	}

	trade := s.data.Trades[i].Clone()
	if err := trade.TransitionState(to, reason); err != nil {
		return err
	}
	if to != models.StateRejected {
		trade.RealizedPnL = realizedPnL
		s.data.Statistics.record(realizedPnL)
		day := trade.ClosedAt.Format(dateLayout)
		s.data.DailyPnL[day] = s.data.DailyPnL[day].Add(realizedPnL)
	}
	s.data.Trades[i] = trade
	return s.saveLocked()
}

// GetStatistics returns a copy of the running statistics.
func (s *JSONStorage) GetStatistics() *Statistics {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats := *s.data.Statistics
	return &stats
}

// GetDailyPnL returns realized P&L booked on date (YYYY-MM-DD).
func (s *JSONStorage) GetDailyPnL(date string) decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.DailyPnL[date]
}

// StoreIVReading keeps one reading per symbol and date; a later reading replaces an earlier one.
func (s *JSONStorage) StoreIVReading(reading *models.IVReading) error {
	if reading == nil || reading.Symbol == "" {
		return errors.New("IV reading must have a symbol")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r := *reading
	r.Symbol = strings.ToUpper(r.Symbol)
	r.Date = truncateDay(r.Date)
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now().UTC()
	}

	readings := s.data.IVReadings[r.Symbol]
	replaced := false
	for i := range readings {
		if readings[i].Date.Equal(r.Date) {
			readings[i] = r
			replaced = true
			break
		}
	}
	if !replaced {
		readings = append(readings, r)
		sort.Slice(readings, func(i, j int) bool { return readings[i].Date.Before(readings[j].Date) })
	}
	s.data.IVReadings[r.Symbol] = readings
	return s.saveLocked()
}

// GetIVReadings returns readings dated within [startDate, endDate], oldest first.
func (s *JSONStorage) GetIVReadings(symbol string, startDate, endDate time.Time) ([]models.IVReading, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	start, end := truncateDay(startDate), truncateDay(endDate)
	var out []models.IVReading
	for _, r := range s.data.IVReadings[strings.ToUpper(symbol)] {
		if !r.Date.Before(start) && !r.Date.After(end) {
			out = append(out, r)
		}
	}
	return out, nil
}

// GetLatestIVReading returns the most recent reading of symbol.
func (s *JSONStorage) GetLatestIVReading(symbol string) (*models.IVReading, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	readings := s.data.IVReadings[strings.ToUpper(symbol)]
	if len(readings) == 0 {
		return nil, fmt.Errorf("%w for %s", ErrNoIVReadings, symbol)
	}
	latest := readings[len(readings)-1]
	return &latest, nil
}

func truncateDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
