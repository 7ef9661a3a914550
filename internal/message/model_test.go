package message

import (
	"errors"
	"testing"
	"time"
)

func TestNewDateAcceptsStrictCalendarDates(testContext *testing.T) {
	tests := []string{
		"2025-01-01",
		"2025-06-30",
		"2024-02-29",
		"1999-12-31",
	}

	for _, rawDate := range tests {
		date, err := NewDate(rawDate)
		if err != nil {
			testContext.Fatalf("expected %q to be valid, got %v", rawDate, err)
		}
		if date.String() != rawDate {
			testContext.Fatalf("expected %q, got %q", rawDate, date.String())
		}
	}
}

func TestNewDateRejectsMalformedInput(testContext *testing.T) {
	tests := []struct {
		name    string
		rawDate string
	}{
		{name: "empty", rawDate: ""},
		{name: "missing zero padding", rawDate: "2025-1-5"},
		{name: "wrong separator", rawDate: "2025/01/05"},
		{name: "impossible day", rawDate: "2025-02-30"},
		{name: "impossible month", rawDate: "2025-13-01"},
		{name: "non-leap february", rawDate: "2025-02-29"},
		{name: "trailing text", rawDate: "2025-01-05T00:00:00"},
		{name: "reversed order", rawDate: "05-01-2025"},
	}

	for _, testCase := range tests {
		testContext.Run(testCase.name, func(testContext *testing.T) {
			if _, err := NewDate(testCase.rawDate); !errors.Is(err, ErrInvalidDate) {
				testContext.Fatalf("expected ErrInvalidDate for %q, got %v", testCase.rawDate, err)
			}
		})
	}
}

func TestDateOfFollowsAnchoredTimezone(testContext *testing.T) {
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		testContext.Fatalf("failed to load location: %v", err)
	}

	// 16:30 UTC on June 1st is already June 2nd in Tokyo.
	instant := time.Date(2025, 6, 1, 16, 30, 0, 0, time.UTC)

	if got := DateOf(instant, time.UTC); got != "2025-06-01" {
		testContext.Fatalf("expected UTC date 2025-06-01, got %s", got)
	}
	if got := DateOf(instant, tokyo); got != "2025-06-02" {
		testContext.Fatalf("expected Tokyo date 2025-06-02, got %s", got)
	}
}

func TestAddDaysCrossesMonthAndYearBoundaries(testContext *testing.T) {
	tests := []struct {
		start    Date
		days     int
		expected Date
	}{
		{start: "2025-01-10", days: 0, expected: "2025-01-10"},
		{start: "2025-01-30", days: 2, expected: "2025-02-01"},
		{start: "2025-12-31", days: 1, expected: "2026-01-01"},
		{start: "2024-02-28", days: 1, expected: "2024-02-29"},
	}

	for _, testCase := range tests {
		if got := testCase.start.AddDays(testCase.days); got != testCase.expected {
			testContext.Fatalf("expected %s + %d days = %s, got %s",
				testCase.start, testCase.days, testCase.expected, got)
		}
	}
}

func TestSortKeyUsesDatePrefix(testContext *testing.T) {
	date := Date("2025-06-01")
	if got := date.SortKey(); got != "DATE#2025-06-01" {
		testContext.Fatalf("unexpected sort key %q", got)
	}
}

func TestExpandConsecutiveMapsTextsOntoConsecutiveDays(testContext *testing.T) {
	candidates := ExpandConsecutive("2025-01-10", []string{"a", "b", "c"})

	expected := []Candidate{
		{Date: "2025-01-10", Text: "a"},
		{Date: "2025-01-11", Text: "b"},
		{Date: "2025-01-12", Text: "c"},
	}
	if len(candidates) != len(expected) {
		testContext.Fatalf("expected %d candidates, got %d", len(expected), len(candidates))
	}
	for index, candidate := range candidates {
		if candidate != expected[index] {
			testContext.Fatalf("candidate %d: expected %+v, got %+v", index, expected[index], candidate)
		}
	}
}

func TestPresentRequiresActiveStatus(testContext *testing.T) {
	active := DailyMessage{Date: "2025-06-01", Text: "hi", Status: StatusActive}
	if !active.Present() {
		testContext.Fatalf("expected active record to be present")
	}

	disabled := DailyMessage{Date: "2025-06-01", Text: "hi", Status: StatusDisabled}
	if disabled.Present() {
		testContext.Fatalf("expected disabled record to be treated as absent")
	}
}

func TestParseStatusRejectsUnknownValues(testContext *testing.T) {
	if _, err := ParseStatus("ACTIVE"); err != nil {
		testContext.Fatalf("expected ACTIVE to parse, got %v", err)
	}
	if _, err := ParseStatus("archived"); !errors.Is(err, ErrInvalidStatus) {
		testContext.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
}
