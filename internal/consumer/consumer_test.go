package consumer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/daysentry/daysentry/internal/alert"
)

type recordingNotifier struct {
	delivered []alert.Message
	notifyErr error
}

func (n *recordingNotifier) Notify(_ context.Context, alertMessage alert.Message) error {
	n.delivered = append(n.delivered, alertMessage)
	return n.notifyErr
}

func mustProcessor(testContext *testing.T, notifier Notifier) *Processor {
	testContext.Helper()
	processor, err := New(Config{Notifier: notifier})
	if err != nil {
		testContext.Fatalf("failed to build processor: %v", err)
	}
	return processor
}

func encodedAlert(testContext *testing.T) string {
	testContext.Helper()
	alertMessage, err := alert.NewMissingMessage("2025-06-01", time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))
	if err != nil {
		testContext.Fatalf("failed to build alert: %v", err)
	}
	body, err := alertMessage.Encode()
	if err != nil {
		testContext.Fatalf("failed to encode alert: %v", err)
	}
	return body
}

func TestProcessAcksAndNotifiesValidAlert(testContext *testing.T) {
	notifier := &recordingNotifier{}
	processor := mustProcessor(testContext, notifier)

	outcome := processor.Process(context.Background(), encodedAlert(testContext))
	if outcome != OutcomeAck {
		testContext.Fatalf("expected Ack, got %v", outcome)
	}
	if len(notifier.delivered) != 1 {
		testContext.Fatalf("expected one notification, got %d", len(notifier.delivered))
	}
	if notifier.delivered[0].Date != "2025-06-01" {
		testContext.Fatalf("unexpected notified date %s", notifier.delivered[0].Date)
	}
}

func TestProcessNacksMalformedBody(testContext *testing.T) {
	notifier := &recordingNotifier{}
	processor := mustProcessor(testContext, notifier)

	outcome := processor.Process(context.Background(), "not-json")
	if outcome != OutcomeNack {
		testContext.Fatalf("expected Nack, got %v", outcome)
	}
	if len(notifier.delivered) != 0 {
		testContext.Fatalf("expected no notification for a malformed body")
	}
}

func TestProcessAcksDespiteNotifierFailure(testContext *testing.T) {
	notifier := &recordingNotifier{notifyErr: errors.New("smtp down")}
	processor := mustProcessor(testContext, notifier)

	outcome := processor.Process(context.Background(), encodedAlert(testContext))
	if outcome != OutcomeAck {
		testContext.Fatalf("expected Ack despite notifier failure, got %v", outcome)
	}
}

func TestProcessToleratesDuplicateDeliveries(testContext *testing.T) {
	notifier := &recordingNotifier{}
	processor := mustProcessor(testContext, notifier)
	body := encodedAlert(testContext)

	for run := 0; run < 2; run++ {
		if outcome := processor.Process(context.Background(), body); outcome != OutcomeAck {
			testContext.Fatalf("run %d: expected Ack, got %v", run, outcome)
		}
	}
	if len(notifier.delivered) != 2 {
		testContext.Fatalf("expected two notifications for duplicate delivery, got %d", len(notifier.delivered))
	}
	if notifier.delivered[0].AlertID != notifier.delivered[1].AlertID {
		testContext.Fatalf("expected the same alert id on both deliveries")
	}
}

// scriptedSource hands out a fixed sequence of deliveries, then blocks until
// the context is cancelled.
type scriptedSource struct {
	deliveries []*alert.Delivery
	position   int
}

func (s *scriptedSource) Receive(ctx context.Context) (*alert.Delivery, error) {
	if s.position < len(s.deliveries) {
		delivery := s.deliveries[s.position]
		s.position++
		return delivery, nil
	}
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestLoopAcksProcessedAndNacksMalformedDeliveries(testContext *testing.T) {
	notifier := &recordingNotifier{}
	processor := mustProcessor(testContext, notifier)

	var (
		outcomeMutex sync.Mutex
		acked        = make(map[int]bool)
		nacked       = make(map[int]bool)
	)
	settled := func() (int, int) {
		outcomeMutex.Lock()
		defer outcomeMutex.Unlock()
		return len(acked), len(nacked)
	}
	newDelivery := func(index int, body string) *alert.Delivery {
		return &alert.Delivery{
			Body: body,
			Ack: func(context.Context) error {
				outcomeMutex.Lock()
				defer outcomeMutex.Unlock()
				acked[index] = true
				return nil
			},
			Nack: func(context.Context) error {
				outcomeMutex.Lock()
				defer outcomeMutex.Unlock()
				nacked[index] = true
				return nil
			},
		}
	}

	source := &scriptedSource{deliveries: []*alert.Delivery{
		newDelivery(0, encodedAlert(testContext)),
		newDelivery(1, "poison"),
		newDelivery(2, encodedAlert(testContext)),
	}}

	loop, err := NewLoop(LoopConfig{Source: source, Processor: processor})
	if err != nil {
		testContext.Fatalf("failed to build loop: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = loop.Run(ctx)
	}()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		ackedCount, nackedCount := settled()
		if ackedCount == 2 && nackedCount == 1 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done

	if !acked[0] || !acked[2] {
		testContext.Fatalf("expected deliveries 0 and 2 to be acked: %v", acked)
	}
	if !nacked[1] {
		testContext.Fatalf("expected the poison delivery to be nacked: %v", nacked)
	}
	if len(notifier.delivered) != 2 {
		testContext.Fatalf("expected two notifications, got %d", len(notifier.delivered))
	}
}

func TestNewRejectsMissingNotifier(testContext *testing.T) {
	if _, err := New(Config{}); err == nil {
		testContext.Fatalf("expected missing notifier to be rejected")
	}
}

func TestNewLoopRejectsMissingDependencies(testContext *testing.T) {
	processor := mustProcessor(testContext, &recordingNotifier{})
	if _, err := NewLoop(LoopConfig{Processor: processor}); err == nil {
		testContext.Fatalf("expected missing source to be rejected")
	}
	if _, err := NewLoop(LoopConfig{Source: &scriptedSource{}}); err == nil {
		testContext.Fatalf("expected missing processor to be rejected")
	}
}
