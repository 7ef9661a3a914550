package alert

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/daysentry/daysentry/internal/message"
)

// Type enumerates the alert kinds carried on the channel.
type Type string

// TypeMissingDailyMessage signals that the expected record for a date was
// absent or disabled at check time.
const TypeMissingDailyMessage Type = "MISSING_DAILY_MESSAGE"

var (
	// ErrParse indicates a channel message body that could not be decoded
	// into a valid alert.
	ErrParse = errors.New("alert: malformed message body")
	// ErrInvalidType indicates an unrecognized alert type.
	ErrInvalidType = errors.New("alert: invalid alert type")
)

// Message represents one detected absence. The channel may deliver the same
// logical alert more than once; AlertID identifies each emission for tracing.
type Message struct {
	AlertID   string       `json:"alert_id"`
	Type      Type         `json:"type"`
	Date      message.Date `json:"date"`
	EmittedAt time.Time    `json:"emitted_at"`
}

// NewMissingMessage constructs a MISSING_DAILY_MESSAGE alert for the date.
func NewMissingMessage(date message.Date, emittedAt time.Time) (Message, error) {
	alertID, err := uuid.NewV7()
	if err != nil {
		return Message{}, fmt.Errorf("alert: generating alert id: %w", err)
	}
	return Message{
		AlertID:   alertID.String(),
		Type:      TypeMissingDailyMessage,
		Date:      date,
		EmittedAt: emittedAt.UTC(),
	}, nil
}

// Encode serializes the alert to its JSON wire form.
func (m Message) Encode() (string, error) {
	body, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("alert: encoding message: %w", err)
	}
	return string(body), nil
}

// Decode parses a channel body into an alert. Any structural or semantic
// defect is reported as ErrParse so consumers can Nack uniformly.
func Decode(body string) (Message, error) {
	var decoded Message
	if err := json.Unmarshal([]byte(body), &decoded); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if decoded.Type != TypeMissingDailyMessage {
		return Message{}, fmt.Errorf("%w: %q", ErrInvalidType, decoded.Type)
	}
	if _, err := message.NewDate(decoded.Date.String()); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrParse, err)
	}
	return decoded, nil
}

// Channel is the producer-side capability: durably enqueue one alert.
// Implementations guarantee durability and at-least-once delivery, nothing
// stronger.
type Channel interface {
	Send(ctx context.Context, alertMessage Message) error
}

// Delivery is one received channel message awaiting acknowledgement.
type Delivery struct {
	Body string
	// Ack terminates the message; it will not be redelivered.
	Ack func(ctx context.Context) error
	// Nack returns the message to the channel for redelivery after the
	// channel's visibility timeout.
	Nack func(ctx context.Context) error
}

// Source is the consumer-side capability: receive deliveries one at a time.
// A nil delivery with a nil error means no message was available.
type Source interface {
	Receive(ctx context.Context) (*Delivery, error)
}
