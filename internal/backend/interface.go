package backend

import (
	"context"

	"libreria/internal/services"
	"libreria/internal/sheets"
)

// Backend is a record store that can also report its health.
type Backend interface {
	sheets.RecordStore
	sheets.Pinger
}

// CleanupFunc releases backend resources
type CleanupFunc func() error

type BackendResult struct {
	Backend Backend
	// Events is nil when record events are disabled or the broker is
	// unreachable at startup.
	Events  services.EventPublisher
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

type Config struct {
	Type BackendType

	// SQLite
	SQLiteDBPath string

	// Google Sheets
	GoogleSpreadsheetID      string
	GoogleSpreadsheetName    string
	GoogleSheetName          string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string

	// Memory
	DataDirectory string

	// Record events, optional for every backend
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	SheetsBackend BackendType = "sheets"
	MemoryBackend BackendType = "memory"
)

func (bt BackendType) String() string {
	return string(bt)
}

func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, SheetsBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
