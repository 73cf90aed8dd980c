package persist

import (
	"context"
	"sync"
	"time"
)

// MemorySink collects training records in memory. Used in development and
// as the test double the design calls for: tests assert on what was
// enqueued without real I/O.
type MemorySink struct {
	mu      sync.Mutex
	records []TrainingRecord
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) Store(_ context.Context, rec TrainingRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

// Records returns a snapshot of everything stored so far.
func (s *MemorySink) Records() []TrainingRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]TrainingRecord, len(s.records))
	copy(out, s.records)
	return out
}

// WaitFor polls until at least n records arrived or the timeout elapses.
func (s *MemorySink) WaitFor(n int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if len(s.Records()) >= n {
			return true
		}
		time.Sleep(2 * time.Millisecond)
	}
	return len(s.Records()) >= n
}

// MemoryFeedbackStore is the in-memory FeedbackStore.
type MemoryFeedbackStore struct {
	mu       sync.Mutex
	feedback []Feedback
}

func NewMemoryFeedbackStore() *MemoryFeedbackStore {
	return &MemoryFeedbackStore{}
}

func (s *MemoryFeedbackStore) SaveFeedback(_ context.Context, f Feedback) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.feedback = append(s.feedback, f)
	return nil
}

func (s *MemoryFeedbackStore) Feedback() []Feedback {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Feedback, len(s.feedback))
	copy(out, s.feedback)
	return out
}
