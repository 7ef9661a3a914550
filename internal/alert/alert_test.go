package alert

import (
	"errors"
	"testing"
	"time"
)

func TestNewMissingMessageCarriesDateAndType(testContext *testing.T) {
	emittedAt := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	alertMessage, err := NewMissingMessage("2025-06-01", emittedAt)
	if err != nil {
		testContext.Fatalf("unexpected error: %v", err)
	}
	if alertMessage.Type != TypeMissingDailyMessage {
		testContext.Fatalf("unexpected type %q", alertMessage.Type)
	}
	if alertMessage.Date != "2025-06-01" {
		testContext.Fatalf("unexpected date %q", alertMessage.Date)
	}
	if alertMessage.AlertID == "" {
		testContext.Fatalf("expected a non-empty alert id")
	}
	if !alertMessage.EmittedAt.Equal(emittedAt) {
		testContext.Fatalf("unexpected emitted-at %v", alertMessage.EmittedAt)
	}
}

func TestDecodeRejectsMalformedBodies(testContext *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "not json", body: "not-json"},
		{name: "empty object", body: "{}"},
		{name: "unknown type", body: `{"alert_id":"a","type":"SOMETHING_ELSE","date":"2025-06-01"}`},
		{name: "invalid date", body: `{"alert_id":"a","type":"MISSING_DAILY_MESSAGE","date":"June 1"}`},
	}

	for _, testCase := range tests {
		testContext.Run(testCase.name, func(testContext *testing.T) {
			if _, err := Decode(testCase.body); err == nil {
				testContext.Fatalf("expected decode to fail for %q", testCase.body)
			}
		})
	}
}

func TestDecodeReportsParseErrorForBadJSON(testContext *testing.T) {
	if _, err := Decode("{"); !errors.Is(err, ErrParse) {
		testContext.Fatalf("expected ErrParse, got %v", err)
	}
}

func TestDecodeRoundTripsEncodedAlert(testContext *testing.T) {
	original, err := NewMissingMessage("2025-06-01", time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))
	if err != nil {
		testContext.Fatalf("unexpected error: %v", err)
	}

	body, err := original.Encode()
	if err != nil {
		testContext.Fatalf("unexpected error: %v", err)
	}

	decoded, err := Decode(body)
	if err != nil {
		testContext.Fatalf("unexpected error: %v", err)
	}
	if decoded.AlertID != original.AlertID || decoded.Date != original.Date {
		testContext.Fatalf("decoded alert does not match original: %+v vs %+v", decoded, original)
	}
}
