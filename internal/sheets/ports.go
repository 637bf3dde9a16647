package sheets

import (
	"context"
	"errors"

	"libreria/internal/core"
)

// ErrNotFound is returned by DeleteByDate when no row carries the date.
var ErrNotFound = errors.New("record not found")

// Ports for outbound adapters.
type (
	// RecordStore is the tabular system of record. It offers no update in
	// place and no locking: one operator, one write per action.
	RecordStore interface {
		// LoadAll returns every data row keyed by header. An empty store
		// yields an empty slice, not an error.
		LoadAll(ctx context.Context) ([]core.RawRow, error)

		// Append writes one row positioned by the store's header order,
		// writing core.Columns as header first when the store has none.
		Append(ctx context.Context, row core.Row) error

		// DeleteByDate removes the row whose Fecha equals d.
		DeleteByDate(ctx context.Context, d core.Date) error
	}

	// Pinger is implemented by stores that can cheaply check connectivity.
	Pinger interface {
		Ping(ctx context.Context) error
	}
)
