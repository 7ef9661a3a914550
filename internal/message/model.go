package message

import (
	"errors"
	"fmt"
	"time"
)

// Status enumerates the lifecycle states of a daily message record.
type Status string

const (
	// StatusActive marks a record that satisfies the presence check.
	StatusActive Status = "ACTIVE"
	// StatusDisabled marks a record that is stored but must be treated as absent.
	StatusDisabled Status = "DISABLED"
)

const (
	// PartitionKey is the fixed partition key shared by all daily message records.
	PartitionKey = "MSG"

	sortKeyPrefix = "DATE#"
	dateLayout    = "2006-01-02"
)

var (
	// ErrInvalidDate indicates that a raw date string is not a strict YYYY-MM-DD calendar date.
	ErrInvalidDate = errors.New("message: invalid date")
	// ErrInvalidStatus indicates an unrecognized status value.
	ErrInvalidStatus = errors.New("message: invalid status")
)

// Date represents a validated civil calendar date in YYYY-MM-DD form.
type Date string

// NewDate validates raw input against the strict calendar-date grammar.
// Zero-padded months and days are required; impossible dates such as
// 2025-02-30 are rejected.
func NewDate(rawInput string) (Date, error) {
	parsed, err := time.Parse(dateLayout, rawInput)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidDate, rawInput)
	}
	if parsed.Format(dateLayout) != rawInput {
		return "", fmt.Errorf("%w: %q", ErrInvalidDate, rawInput)
	}
	return Date(rawInput), nil
}

// DateOf converts a wall-clock instant to the civil date observed in the
// provided location. The location anchors all "today" semantics; it is never
// derived from the host zone.
func DateOf(instant time.Time, location *time.Location) Date {
	return Date(instant.In(location).Format(dateLayout))
}

// String returns the ISO date string.
func (d Date) String() string {
	return string(d)
}

// AddDays returns the calendar date the given number of days after d.
func (d Date) AddDays(days int) Date {
	parsed, err := time.Parse(dateLayout, string(d))
	if err != nil {
		return d
	}
	return Date(parsed.AddDate(0, 0, days).Format(dateLayout))
}

// SortKey returns the composite sort key for the date.
func (d Date) SortKey() string {
	return sortKeyPrefix + string(d)
}

// ParseStatus validates a raw status value.
func ParseStatus(rawInput string) (Status, error) {
	switch Status(rawInput) {
	case StatusActive, StatusDisabled:
		return Status(rawInput), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, rawInput)
	}
}

// DailyMessage models one day's expected payload.
type DailyMessage struct {
	Date      Date
	Text      string
	Status    Status
	CreatedAt time.Time
}

// Present reports whether the record satisfies the presence check. A disabled
// record is treated identically to a missing one.
func (m DailyMessage) Present() bool {
	return m.Status == StatusActive
}

// Candidate pairs a date with the text to store for that date.
type Candidate struct {
	Date Date
	Text string
}

// ExpandConsecutive maps an ordered list of texts onto consecutive calendar
// days starting at startDate.
func ExpandConsecutive(startDate Date, texts []string) []Candidate {
	candidates := make([]Candidate, 0, len(texts))
	for offset, text := range texts {
		candidates = append(candidates, Candidate{Date: startDate.AddDays(offset), Text: text})
	}
	return candidates
}
