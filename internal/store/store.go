package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jordanw/callscope/internal/config"
	"github.com/jordanw/callscope/internal/domain"
)

// ErrNotFound is returned when no record exists for the requested filename.
var ErrNotFound = errors.New("record not found")

// Store is the narrow contract every tabular backend implements. Filename is
// the unique key: Upsert overwrites the row with a matching filename instead
// of appending a duplicate. Implementations must serialize concurrent writers
// and never let a reader observe a half-written row.
type Store interface {
	// Upsert inserts a new record or overwrites the record with the same filename.
	Upsert(ctx context.Context, rec *domain.CallRecord) error

	// Get returns the record for filename, or ErrNotFound.
	Get(ctx context.Context, filename string) (*domain.CallRecord, error)

	// List returns all records, most recent first by timestamp.
	List(ctx context.Context) ([]domain.CallRecord, error)

	// Delete removes the record for filename, returning ErrNotFound if absent.
	Delete(ctx context.Context, filename string) error

	// Search returns records whose transcription, summary, intent, agent
	// name, or filename contains the query, case-insensitively. Most
	// recent first.
	Search(ctx context.Context, query string) ([]domain.CallRecord, error)

	// Count returns the number of stored records.
	Count(ctx context.Context) (int64, error)

	// Close releases any underlying resources.
	Close() error
}

// New selects a backend from configuration. The CSV store is the default;
// sqlite and postgres go through GORM.
func New(cfg *config.StorageConfig) (Store, error) {
	switch cfg.Driver {
	case "csv", "":
		return OpenCSV(cfg.CSVPath)
	case "sqlite", "postgres":
		return OpenDB(cfg)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
