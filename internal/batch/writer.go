package batch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/daysentry/daysentry/internal/message"
	"github.com/daysentry/daysentry/internal/store"
)

// Validation codes surfaced to callers.
const (
	CodeTooManyItems      = "MAX_25_ITEMS_PER_REQUEST"
	CodeInvalidDateFormat = "INVALID_DATE_FORMAT"
	CodeDuplicateDate     = "DUPLICATE_DATE"
	CodeNoItems           = "NO_ITEMS"
)

var errMissingStore = errors.New("batch: record store is required")

// ValidationError reports malformed input. The call performed no writes.
type ValidationError struct {
	Code string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("batch: validation failed: %s", e.Code)
}

// ConflictError reports that a non-forced request hit an existing record.
// The entire request was aborted; no candidate was written.
type ConflictError struct {
	Date message.Date
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("batch: record already exists for %s", e.Date)
}

// PartialWriteError reports candidates still unprocessed after the single
// retry. Callers may resubmit only the named dates.
type PartialWriteError struct {
	Dates []message.Date
}

func (e *PartialWriteError) Error() string {
	names := make([]string, 0, len(e.Dates))
	for _, date := range e.Dates {
		names = append(names, date.String())
	}
	return fmt.Sprintf("batch: unprocessed after retry: %s", strings.Join(names, ", "))
}

// Item is one raw (date, text) pair from the caller.
type Item struct {
	Date string
	Text string
}

// Request is the transient input to one Write call. Exactly one input form is
// used: an explicit Items list, or StartDate plus Texts mapped onto
// consecutive calendar days.
type Request struct {
	Items     []Item
	StartDate string
	Texts     []string
	Force     bool
}

// Result reports the outcome of a successful Write.
type Result struct {
	Written int
}

// Config captures construction parameters for the batch writer.
type Config struct {
	Store  store.RecordStore
	Clock  func() time.Time
	Logger *zap.Logger
}

// Writer bulk-loads daily message records. Every call is self-contained; the
// writer holds no state between calls.
type Writer struct {
	store  store.RecordStore
	clock  func() time.Time
	logger *zap.Logger
}

// New validates dependencies and constructs a writer.
func New(cfg Config) (*Writer, error) {
	if cfg.Store == nil {
		return nil, errMissingStore
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Writer{store: cfg.Store, clock: clock, logger: logger}, nil
}

// Write validates the request, applies the conflict policy, and submits one
// batch chunk, retrying the unprocessed subset exactly once.
//
// The non-forced conflict check is a sequential pre-check, not a transaction:
// a record inserted concurrently between the probe and the batch write is not
// detected. Last write wins.
func (w *Writer) Write(ctx context.Context, request Request) (Result, error) {
	candidates, err := expand(request)
	if err != nil {
		return Result{}, err
	}

	if !request.Force {
		for _, candidate := range candidates {
			_, err := w.store.Get(ctx, candidate.Date)
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			if err != nil {
				return Result{}, fmt.Errorf("batch: probing record for %s: %w", candidate.Date, err)
			}
			return Result{}, &ConflictError{Date: candidate.Date}
		}
	}

	writtenAt := w.clock().UTC()
	records := make([]message.DailyMessage, 0, len(candidates))
	for _, candidate := range candidates {
		records = append(records, message.DailyMessage{
			Date:      candidate.Date,
			Text:      candidate.Text,
			Status:    message.StatusActive,
			CreatedAt: writtenAt,
		})
	}

	unprocessed, err := w.store.PutBatch(ctx, records)
	if err != nil {
		return Result{}, fmt.Errorf("batch: writing records: %w", err)
	}

	if len(unprocessed) > 0 {
		w.logger.Warn("retrying unprocessed records", zap.Int("count", len(unprocessed)))

		retryRecords := selectRecords(records, unprocessed)
		stillUnprocessed, err := w.store.PutBatch(ctx, retryRecords)
		if err != nil {
			return Result{}, fmt.Errorf("batch: retrying unprocessed records: %w", err)
		}
		if len(stillUnprocessed) > 0 {
			return Result{}, &PartialWriteError{Dates: stillUnprocessed}
		}
	}

	w.logger.Info("batch write complete",
		zap.Int("written", len(records)),
		zap.Bool("force", request.Force))
	return Result{Written: len(records)}, nil
}

// expand normalizes either input form into a validated candidate list.
// Validation order: candidate count, then date grammar, then duplicates.
func expand(request Request) ([]message.Candidate, error) {
	count := len(request.Items)
	if count == 0 {
		count = len(request.Texts)
	}
	if count == 0 {
		return nil, &ValidationError{Code: CodeNoItems}
	}
	if count > store.MaxBatchSize {
		return nil, &ValidationError{Code: CodeTooManyItems}
	}

	var candidates []message.Candidate
	if len(request.Items) > 0 {
		candidates = make([]message.Candidate, 0, len(request.Items))
		for _, item := range request.Items {
			date, err := message.NewDate(item.Date)
			if err != nil {
				return nil, &ValidationError{Code: CodeInvalidDateFormat}
			}
			candidates = append(candidates, message.Candidate{Date: date, Text: item.Text})
		}
	} else {
		startDate, err := message.NewDate(request.StartDate)
		if err != nil {
			return nil, &ValidationError{Code: CodeInvalidDateFormat}
		}
		candidates = message.ExpandConsecutive(startDate, request.Texts)
	}

	seen := make(map[message.Date]struct{}, len(candidates))
	for _, candidate := range candidates {
		if _, duplicate := seen[candidate.Date]; duplicate {
			return nil, &ValidationError{Code: CodeDuplicateDate}
		}
		seen[candidate.Date] = struct{}{}
	}

	return candidates, nil
}

func selectRecords(records []message.DailyMessage, dates []message.Date) []message.DailyMessage {
	wanted := make(map[message.Date]struct{}, len(dates))
	for _, date := range dates {
		wanted[date] = struct{}{}
	}

	selected := make([]message.DailyMessage, 0, len(dates))
	for _, record := range records {
		if _, ok := wanted[record.Date]; ok {
			selected = append(selected, record)
		}
	}
	return selected
}
