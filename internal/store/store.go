package store

import (
	"context"
	"errors"

	"github.com/daysentry/daysentry/internal/message"
)

// MaxBatchSize is the largest number of records accepted by a single
// PutBatch call, matching the backing store's atomic batch limit.
const MaxBatchSize = 25

var (
	// ErrNotFound indicates that no record exists for the requested date.
	ErrNotFound = errors.New("store: record not found")
	// ErrBatchTooLarge indicates a PutBatch call exceeding MaxBatchSize.
	ErrBatchTooLarge = errors.New("store: batch exceeds maximum size")
)

// RecordStore is the narrow persistence interface consumed by the checker and
// the batch writer. Implementations own durability; callers own retry policy.
type RecordStore interface {
	// Get returns the record for the given date or ErrNotFound.
	Get(ctx context.Context, date message.Date) (message.DailyMessage, error)

	// Put unconditionally writes a single record, overwriting any existing
	// value for the same date.
	Put(ctx context.Context, record message.DailyMessage) error

	// PutBatch writes up to MaxBatchSize records in one chunk and returns the
	// dates the store reported as unprocessed. A non-empty unprocessed slice
	// with a nil error means the remaining records were written.
	PutBatch(ctx context.Context, records []message.DailyMessage) ([]message.Date, error)
}
