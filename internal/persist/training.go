// Package persist handles the two best-effort write paths that follow a
// completed analysis: the training log and user feedback intake.
package persist

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"cropscan-gateway/internal/analyze"
	"cropscan-gateway/internal/metrics"
)

// TrainingRecord is one request/response pair stored for later model
// training and evaluation. Image bytes are serialized as base64 by
// encoding/json.
type TrainingRecord struct {
	ID          string          `json:"id"`
	Fingerprint string          `json:"fingerprint"`
	Category    string          `json:"category"`
	Locale      string          `json:"locale"`
	Location    string          `json:"location,omitempty"`
	Image       []byte          `json:"image"`
	CloseUp     []byte          `json:"close_up,omitempty"`
	Result      *analyze.Result `json:"result"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Sink stores training records. Implementations must be safe for use from
// the single worker goroutine.
type Sink interface {
	Store(ctx context.Context, rec TrainingRecord) error
}

// TrainingLogger decouples the request path from training-log I/O: Log
// only enqueues, a background worker drains the queue. A full queue drops
// the record (counted) rather than delaying the user-facing response.
type TrainingLogger struct {
	sink   Sink
	queue  chan TrainingRecord
	done   chan struct{}
	logger *zap.Logger

	closeOnce sync.Once
}

func NewTrainingLogger(sink Sink, queueSize int, logger *zap.Logger) *TrainingLogger {
	if queueSize <= 0 {
		queueSize = 256
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	l := &TrainingLogger{
		sink:   sink,
		queue:  make(chan TrainingRecord, queueSize),
		done:   make(chan struct{}),
		logger: logger.Named("training"),
	}

	go l.run()

	return l
}

// Log enqueues a record without blocking. Missing ID/CreatedAt are filled
// in here so callers only provide the domain payload.
func (l *TrainingLogger) Log(rec TrainingRecord) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	select {
	case l.queue <- rec:
	default:
		metrics.TrainingDroppedTotal.Inc()
		l.logger.Warn("training queue full, dropping record",
			zap.String("record_id", rec.ID),
		)
	}
}

func (l *TrainingLogger) run() {
	defer close(l.done)

	for rec := range l.queue {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := l.sink.Store(ctx, rec)
		cancel()

		if err != nil {
			// Training data loss is tolerable; failing a user request
			// over it is not.
			l.logger.Error("training record store failed",
				zap.String("record_id", rec.ID),
				zap.Error(err),
			)
			continue
		}

		l.logger.Debug("training record stored",
			zap.String("record_id", rec.ID),
		)
	}
}

// Close drains the queue and stops the worker.
func (l *TrainingLogger) Close() {
	l.closeOnce.Do(func() {
		close(l.queue)
	})
	<-l.done
}
