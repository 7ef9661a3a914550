package consumer

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/daysentry/daysentry/internal/alert"
)

var (
	errMissingNotifier = errors.New("consumer: notifier is required")
	errMissingSource   = errors.New("consumer: alert source is required")
)

// Notifier is the pluggable delivery capability behind the consumer. The
// contract is best-effort and non-blocking: a notifier failure must not cause
// alert redelivery.
type Notifier interface {
	Notify(ctx context.Context, alertMessage alert.Message) error
}

// LogNotifier writes alerts to the structured log. It is the only channel
// today; email and chat notifiers plug in behind the same interface.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier constructs a log-backed notifier.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

// Notify emits one log record for the alert.
func (n *LogNotifier) Notify(_ context.Context, alertMessage alert.Message) error {
	n.logger.Warn("daily message alert",
		zap.String("alert_id", alertMessage.AlertID),
		zap.String("type", string(alertMessage.Type)),
		zap.String("date", alertMessage.Date.String()))
	return nil
}

// Outcome is the consumer's verdict on one delivery.
type Outcome int

const (
	// OutcomeAck terminates the delivery.
	OutcomeAck Outcome = iota
	// OutcomeNack returns the delivery for redelivery.
	OutcomeNack
)

// Config captures construction parameters for the processor.
type Config struct {
	Notifier Notifier
	Logger   *zap.Logger
}

// Processor handles one delivered alert at a time. Deliveries are
// at-least-once, so processing the same logical alert twice must be harmless;
// the only side effect is a duplicate notification.
type Processor struct {
	notifier Notifier
	logger   *zap.Logger
}

// New validates dependencies and constructs a processor.
func New(cfg Config) (*Processor, error) {
	if cfg.Notifier == nil {
		return nil, errMissingNotifier
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Processor{notifier: cfg.Notifier, logger: logger}, nil
}

// Process parses one delivery body and dispatches it to the notifier.
// A parse failure Nacks so the channel's redelivery and dead-letter policy
// take over. Notifier failures are logged and still Acked; redelivery storms
// for a best-effort notification are worse than a dropped one.
func (p *Processor) Process(ctx context.Context, body string) Outcome {
	alertMessage, err := alert.Decode(body)
	if err != nil {
		p.logger.Error("alert body rejected", zap.Error(err))
		return OutcomeNack
	}

	if err := p.notifier.Notify(ctx, alertMessage); err != nil {
		p.logger.Error("notifier failed",
			zap.String("alert_id", alertMessage.AlertID),
			zap.String("date", alertMessage.Date.String()),
			zap.Error(err))
	}
	return OutcomeAck
}

// LoopConfig captures construction parameters for the drain loop.
type LoopConfig struct {
	Source    alert.Source
	Processor *Processor
	Logger    *zap.Logger
}

// Loop drains an alert source one delivery at a time until the context is
// cancelled.
type Loop struct {
	source    alert.Source
	processor *Processor
	logger    *zap.Logger
}

// NewLoop validates dependencies and constructs a drain loop.
func NewLoop(cfg LoopConfig) (*Loop, error) {
	if cfg.Source == nil {
		return nil, errMissingSource
	}
	if cfg.Processor == nil {
		return nil, errors.New("consumer: processor is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Loop{source: cfg.Source, processor: cfg.Processor, logger: logger}, nil
}

// Run receives and processes deliveries until ctx is cancelled. Receive
// errors are logged and the loop continues; the channel owns durability, so
// nothing is lost by moving on.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Info("alert consumer started")

	for {
		if err := ctx.Err(); err != nil {
			l.logger.Info("alert consumer stopping")
			return err
		}

		delivery, err := l.source.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			l.logger.Error("receive failed", zap.Error(err))
			continue
		}
		if delivery == nil {
			continue
		}

		switch l.processor.Process(ctx, delivery.Body) {
		case OutcomeAck:
			if err := delivery.Ack(ctx); err != nil {
				l.logger.Error("ack failed", zap.Error(err))
			}
		case OutcomeNack:
			if err := delivery.Nack(ctx); err != nil {
				l.logger.Error("nack failed", zap.Error(err))
			}
		}
	}
}
