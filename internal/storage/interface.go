package storage

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/eddiefleurent/options_advisor/internal/models"
)

// Interface defines the contract for trade and IV data persistence.
//
// Implementations must be safe for concurrent use - callers can assume all methods
// are goroutine-safe and can safely call these methods from multiple goroutines.
// Returned records are copies; mutate them and pass them to UpdateTrade to persist.
type Interface interface {
	// Trade management
	AddTrade(trade *models.TradeRecord) error
	GetTrade(id string) (*models.TradeRecord, error)
	UpdateTrade(trade *models.TradeRecord) error
	GetTrades() []models.TradeRecord
	GetTradesByState(states ...models.TradeState) []models.TradeRecord
	// CloseTrade moves a trade into a terminal state and books its realized P&L.
	CloseTrade(id string, to models.TradeState, reason string, realizedPnL decimal.Decimal) error

	// Data persistence
	Save() error
	Load() error

	// Historical data and analytics
	GetStatistics() *Statistics
	GetDailyPnL(date string) decimal.Decimal

	// IV data storage
	StoreIVReading(reading *models.IVReading) error
	GetIVReadings(symbol string, startDate, endDate time.Time) ([]models.IVReading, error)
	GetLatestIVReading(symbol string) (*models.IVReading, error)
}

// NewStorage creates a new storage implementation (currently JSON-based)
func NewStorage(filepath string) (Interface, error) {
	return NewJSONStorage(filepath)
}

// Ensure JSONStorage implements Interface
var _ Interface = (*JSONStorage)(nil)
