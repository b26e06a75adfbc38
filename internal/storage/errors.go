package storage

import "errors"

var (
	// ErrNoIVReadings is returned when no IV readings are found for a symbol
	ErrNoIVReadings = errors.New("no IV readings found")
	// ErrTradeNotFound is returned when no trade has the requested ID
	ErrTradeNotFound = errors.New("trade not found")
	// ErrDuplicateTrade is returned when adding a trade whose ID is already stored
	ErrDuplicateTrade = errors.New("trade already exists")
)
