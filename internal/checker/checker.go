package checker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/daysentry/daysentry/internal/alert"
	"github.com/daysentry/daysentry/internal/message"
	"github.com/daysentry/daysentry/internal/store"
)

var (
	errMissingStore    = errors.New("checker: record store is required")
	errMissingChannel  = errors.New("checker: alert channel is required")
	errMissingLocation = errors.New("checker: timezone location is required")
)

// Config captures construction parameters for the presence checker.
type Config struct {
	Store   store.RecordStore
	Channel alert.Channel
	// Location anchors the civil-calendar meaning of "today". All daily
	// semantics follow this zone, never UTC or the host zone.
	Location *time.Location
	Clock    func() time.Time
	Logger   *zap.Logger
}

// Checker verifies that the expected record for a date exists and is active,
// emitting a durable alert when it is not. It holds no state across ticks;
// re-running a tick for the same date is safe and may produce a duplicate
// alert, which consumers tolerate.
type Checker struct {
	store    store.RecordStore
	channel  alert.Channel
	location *time.Location
	clock    func() time.Time
	logger   *zap.Logger
}

// New validates dependencies and constructs a checker.
func New(cfg Config) (*Checker, error) {
	if cfg.Store == nil {
		return nil, errMissingStore
	}
	if cfg.Channel == nil {
		return nil, errMissingChannel
	}
	if cfg.Location == nil {
		return nil, errMissingLocation
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Checker{
		store:    cfg.Store,
		channel:  cfg.Channel,
		location: cfg.Location,
		clock:    clock,
		logger:   logger,
	}, nil
}

// CheckToday runs one presence check for the current date in the anchored
// timezone.
func (c *Checker) CheckToday(ctx context.Context) error {
	return c.Check(ctx, message.DateOf(c.clock(), c.location))
}

// Check reads the record for the reference date and emits one
// MISSING_DAILY_MESSAGE alert if the record is absent or disabled. Store and
// channel failures are returned to the caller unretried; the invoking
// scheduler owns re-attempts.
func (c *Checker) Check(ctx context.Context, referenceDate message.Date) error {
	record, err := c.store.Get(ctx, referenceDate)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return c.emitMissing(ctx, referenceDate, "record absent")
	case err != nil:
		c.logger.Error("presence check read failed",
			zap.String("date", referenceDate.String()),
			zap.Error(err))
		return fmt.Errorf("checker: reading record for %s: %w", referenceDate, err)
	}

	if !record.Present() {
		return c.emitMissing(ctx, referenceDate, "record disabled")
	}

	c.logger.Info("presence check ok", zap.String("date", referenceDate.String()))
	return nil
}

func (c *Checker) emitMissing(ctx context.Context, referenceDate message.Date, reason string) error {
	alertMessage, err := alert.NewMissingMessage(referenceDate, c.clock())
	if err != nil {
		return err
	}

	if err := c.channel.Send(ctx, alertMessage); err != nil {
		c.logger.Error("alert emission failed",
			zap.String("date", referenceDate.String()),
			zap.Error(err))
		return fmt.Errorf("checker: emitting alert for %s: %w", referenceDate, err)
	}

	c.logger.Warn("daily message missing",
		zap.String("date", referenceDate.String()),
		zap.String("reason", reason),
		zap.String("alert_id", alertMessage.AlertID))
	return nil
}
