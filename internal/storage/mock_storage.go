package storage

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/eddiefleurent/options_advisor/internal/models"
)

// MockStorage implements Interface in memory for testing
type MockStorage struct {
	mu            sync.Mutex
	saveError     error
	loadError     error
	trades        []*models.TradeRecord
	dailyPnL      map[string]decimal.Decimal
	statistics    *Statistics
	ivReadings    map[string][]models.IVReading
	saveCallCount int
	loadCallCount int
}

// NewMockStorage creates a new mock storage for testing
func NewMockStorage() *MockStorage {
	return &MockStorage{
		dailyPnL:   make(map[string]decimal.Decimal),
		statistics: &Statistics{},
		ivReadings: make(map[string][]models.IVReading),
	}
}

// Trade management methods

func (m *MockStorage) find(id string) int {
	for i, t := range m.trades {
		if t.ID == id {
			return i
		}
	}
	return -1
}

func (m *MockStorage) AddTrade(trade *models.TradeRecord) error {
	if trade == nil || trade.ID == "" {
		return errors.New("trade must have an ID")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.find(trade.ID) >= 0 {
		return fmt.Errorf("%w: %s", ErrDuplicateTrade, trade.ID)
	}
	m.trades = append(m.trades, trade.Clone())
	return m.saveError
}

func (m *MockStorage) GetTrade(id string) (*models.TradeRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.find(id)
	if i < 0 {
		return nil, fmt.Errorf("%w: %s", ErrTradeNotFound, id)
	}
	return m.trades[i].Clone(), nil
}

func (m *MockStorage) UpdateTrade(trade *models.TradeRecord) error {
	if trade == nil {
		return errors.New("trade is nil")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.find(trade.ID)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrTradeNotFound, trade.ID)
	}
	m.trades[i] = trade.Clone()
	return m.saveError
}

func (m *MockStorage) GetTrades() []models.TradeRecord {
	return m.GetTradesByState()
}

func (m *MockStorage) GetTradesByState(states ...models.TradeState) []models.TradeRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.TradeRecord, 0, len(m.trades))
	for _, t := range m.trades {
		if matchesState(t.State, states) {
			out = append(out, *t.Clone())
		}
	}
	return out
}

func (m *MockStorage) CloseTrade(id string, to models.TradeState, reason string, realizedPnL decimal.Decimal) error {
	if !to.IsTerminal() {
		return fmt.Errorf("cannot close trade into non-terminal state %s", to)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.find(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrTradeNotFound, id)
	}
	trade := m.trades[i].Clone()
	if err := trade.TransitionState(to, reason); err != nil {
		return fmt.Errorf("failed to transition trade to %s: %w", to, err)
	}
	if to != models.StateRejected {
		trade.RealizedPnL = realizedPnL
		m.statistics.record(realizedPnL)
		day := trade.ClosedAt.Format(dateLayout)
		m.dailyPnL[day] = m.dailyPnL[day].Add(realizedPnL)
	}
	m.trades[i] = trade
	return m.saveError
}

// Data persistence methods (mocked)
func (m *MockStorage) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveCallCount++
	return m.saveError
}

func (m *MockStorage) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loadCallCount++
	return m.loadError
}

// Historical data and analytics
func (m *MockStorage) GetStatistics() *Statistics {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := *m.statistics
	return &stats
}

func (m *MockStorage) GetDailyPnL(date string) decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dailyPnL[date]
}

// IV data storage

func (m *MockStorage) StoreIVReading(reading *models.IVReading) error {
	if reading == nil || reading.Symbol == "" {
		return errors.New("IV reading must have a symbol")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r := *reading
	r.Symbol = strings.ToUpper(r.Symbol)
	r.Date = truncateDay(r.Date)
	readings := m.ivReadings[r.Symbol]
	for i := range readings {
		if readings[i].Date.Equal(r.Date) {
			readings[i] = r
			return m.saveError
		}
	}
	readings = append(readings, r)
	sort.Slice(readings, func(i, j int) bool { return readings[i].Date.Before(readings[j].Date) })
	m.ivReadings[r.Symbol] = readings
	return m.saveError
}

func (m *MockStorage) GetIVReadings(symbol string, startDate, endDate time.Time) ([]models.IVReading, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadError != nil {
		return nil, m.loadError
	}
	start, end := truncateDay(startDate), truncateDay(endDate)
	var out []models.IVReading
	for _, r := range m.ivReadings[strings.ToUpper(symbol)] {
		if !r.Date.Before(start) && !r.Date.After(end) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *MockStorage) GetLatestIVReading(symbol string) (*models.IVReading, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	readings := m.ivReadings[strings.ToUpper(symbol)]
	if len(readings) == 0 {
		return nil, fmt.Errorf("%w for %s", ErrNoIVReadings, symbol)
	}
	latest := readings[len(readings)-1]
	return &latest, nil
}

// Mock control methods for testing
func (m *MockStorage) SetSaveError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveError = err
}

func (m *MockStorage) SetLoadError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loadError = err
}

func (m *MockStorage) GetSaveCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveCallCount
}

func (m *MockStorage) GetLoadCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loadCallCount
}

// Ensure MockStorage implements Interface
var _ Interface = (*MockStorage)(nil)
