package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

var (
	errMissingTick     = errors.New("scheduler: tick function is required")
	errMissingLocation = errors.New("scheduler: timezone location is required")

	// ErrInvalidTimeOfDay indicates a daily trigger time outside HH:MM form.
	ErrInvalidTimeOfDay = errors.New("scheduler: invalid time of day")
)

// Config captures construction parameters for the daily scheduler.
type Config struct {
	// TimeOfDay is the daily wall-clock trigger instant in HH:MM form,
	// interpreted in Location.
	TimeOfDay string
	// Location anchors the trigger to a civil timezone independent of the
	// host zone.
	Location *time.Location
	// Tick runs one presence check. A failed tick is logged and retried at
	// the next trigger; the scheduler never crashes on tick failure.
	Tick func(ctx context.Context) error
	// TickTimeout bounds each tick; zero means one minute.
	TickTimeout time.Duration
	Logger      *zap.Logger
}

// Scheduler triggers the presence check once per day at a fixed wall-clock
// instant in the anchored timezone.
type Scheduler struct {
	cronRunner  *cron.Cron
	tick        func(ctx context.Context) error
	tickTimeout time.Duration
	logger      *zap.Logger

	// runCtx is the context Run was called with; ticks derive from it so an
	// in-flight tick is cancelled at shutdown. Set before the cron runner
	// starts.
	runCtx context.Context
}

// New validates the configuration and constructs a scheduler.
func New(cfg Config) (*Scheduler, error) {
	if cfg.Tick == nil {
		return nil, errMissingTick
	}
	if cfg.Location == nil {
		return nil, errMissingLocation
	}

	cronSpec, err := cronSpecForTimeOfDay(cfg.TimeOfDay)
	if err != nil {
		return nil, err
	}

	tickTimeout := cfg.TickTimeout
	if tickTimeout <= 0 {
		tickTimeout = time.Minute
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	scheduler := &Scheduler{
		cronRunner:  cron.New(cron.WithLocation(cfg.Location)),
		tick:        cfg.Tick,
		tickTimeout: tickTimeout,
		logger:      logger,
	}

	if _, err := scheduler.cronRunner.AddFunc(cronSpec, scheduler.runTick); err != nil {
		return nil, fmt.Errorf("scheduler: registering daily trigger: %w", err)
	}

	logger.Info("daily trigger registered",
		zap.String("time_of_day", cfg.TimeOfDay),
		zap.String("timezone", cfg.Location.String()))
	return scheduler, nil
}

// Run starts the schedule and blocks until the context is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	s.runCtx = ctx
	s.cronRunner.Start()
	<-ctx.Done()

	stopCtx := s.cronRunner.Stop()
	<-stopCtx.Done()

	s.logger.Info("scheduler stopped")
	return ctx.Err()
}

func (s *Scheduler) runTick() {
	baseCtx := s.runCtx
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	ctx, cancel := context.WithTimeout(baseCtx, s.tickTimeout)
	defer cancel()

	if err := s.tick(ctx); err != nil {
		s.logger.Error("scheduled tick failed", zap.Error(err))
		return
	}
	s.logger.Info("scheduled tick complete")
}

// cronSpecForTimeOfDay converts a HH:MM wall-clock time into a daily cron
// expression.
func cronSpecForTimeOfDay(timeOfDay string) (string, error) {
	parsed, err := time.Parse("15:04", timeOfDay)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidTimeOfDay, timeOfDay)
	}
	return fmt.Sprintf("%d %d * * *", parsed.Minute(), parsed.Hour()), nil
}
