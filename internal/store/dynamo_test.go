package store

import (
	"errors"
	"testing"
	"time"

	"github.com/daysentry/daysentry/internal/message"
)

func TestFromDynamoRecordRehydratesItem(testContext *testing.T) {
	createdAt := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	record, err := fromDynamoRecord(dynamoRecord{
		PK:        message.PartitionKey,
		SK:        "DATE#2025-06-01",
		Text:      "Hi",
		Status:    string(message.StatusActive),
		CreatedAt: createdAt.Unix(),
	})
	if err != nil {
		testContext.Fatalf("unexpected error: %v", err)
	}
	if record.Date != "2025-06-01" {
		testContext.Fatalf("unexpected date %q", record.Date)
	}
	if record.Status != message.StatusActive {
		testContext.Fatalf("unexpected status %q", record.Status)
	}
	if !record.CreatedAt.Equal(createdAt) {
		testContext.Fatalf("unexpected createdAt %v", record.CreatedAt)
	}
}

func TestFromDynamoRecordRejectsCorruptStatus(testContext *testing.T) {
	_, err := fromDynamoRecord(dynamoRecord{
		PK:     message.PartitionKey,
		SK:     "DATE#2025-06-01",
		Status: "retired",
	})
	if !errors.Is(err, message.ErrInvalidStatus) {
		testContext.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
}
