package persist

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"cropscan-gateway/internal/analyze"
)

func TestTrainingLoggerDeliversAsync(t *testing.T) {
	sink := NewMemorySink()
	logger := NewTrainingLogger(sink, 8, zaptest.NewLogger(t))
	defer logger.Close()

	logger.Log(TrainingRecord{
		Fingerprint: "abc",
		Category:    "Banana",
		Locale:      "en",
		Image:       []byte{1, 2, 3},
		Result:      &analyze.Result{Condition: "rust", HealthStatus: analyze.StatusUnhealthy, Severity: analyze.SeverityMild},
	})

	if !sink.WaitFor(1, time.Second) {
		t.Fatalf("record never reached the sink")
	}

	rec := sink.Records()[0]
	if rec.ID == "" {
		t.Fatalf("logger must assign an ID")
	}
	if rec.CreatedAt.IsZero() {
		t.Fatalf("logger must assign CreatedAt")
	}
	if rec.Category != "Banana" || rec.Result.Condition != "rust" {
		t.Fatalf("record payload mangled: %#v", rec)
	}
}

func TestTrainingLoggerCloseFlushes(t *testing.T) {
	sink := NewMemorySink()
	logger := NewTrainingLogger(sink, 64, zaptest.NewLogger(t))

	for i := 0; i < 10; i++ {
		logger.Log(TrainingRecord{Fingerprint: "f", Locale: "en"})
	}
	logger.Close()

	if got := len(sink.Records()); got != 10 {
		t.Fatalf("expected all 10 records flushed on Close, got %d", got)
	}
}

type blockingSink struct {
	release chan struct{}
}

func (s *blockingSink) Store(ctx context.Context, rec TrainingRecord) error {
	select {
	case <-s.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func TestTrainingLoggerDropsWhenQueueFull(t *testing.T) {
	sink := &blockingSink{release: make(chan struct{})}
	logger := NewTrainingLogger(sink, 1, zaptest.NewLogger(t))

	// First record occupies the worker, second fills the queue, the rest
	// must be dropped without blocking this goroutine.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			logger.Log(TrainingRecord{Fingerprint: "f"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Log blocked on a full queue")
	}

	close(sink.release)
	logger.Close()
}

type failingSink struct {
	calls int
}

func (s *failingSink) Store(ctx context.Context, rec TrainingRecord) error {
	s.calls++
	return errors.New("storage down")
}

func TestTrainingLoggerSurvivesSinkFailure(t *testing.T) {
	sink := &failingSink{}
	logger := NewTrainingLogger(sink, 8, zaptest.NewLogger(t))

	logger.Log(TrainingRecord{Fingerprint: "a"})
	logger.Log(TrainingRecord{Fingerprint: "b"})
	logger.Close()

	if sink.calls != 2 {
		t.Fatalf("worker must keep consuming after a failure, got %d calls", sink.calls)
	}
}

func TestFeedbackValidate(t *testing.T) {
	valid := Feedback{ScanID: "scan-1", Rating: 4}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid feedback rejected: %v", err)
	}

	cases := []Feedback{
		{Rating: 4},                   // missing scan id
		{ScanID: "scan-1"},            // missing rating
		{ScanID: "scan-1", Rating: 6}, // out of range
	}
	for _, f := range cases {
		if err := f.Validate(); err == nil {
			t.Fatalf("expected validation error for %#v", f)
		}
	}
}
