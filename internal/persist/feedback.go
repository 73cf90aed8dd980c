package persist

import (
	"context"
	"errors"
	"time"
)

// Feedback is a user's later verdict on a scan result, used to grade the
// providers and curate training data.
type Feedback struct {
	ScanID     string    `json:"scan_id"`
	Rating     int       `json:"rating"`
	Comment    string    `json:"comment,omitempty"`
	Correction string    `json:"correction,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Validate is the synchronous part of feedback intake; storage is allowed
// to fail independently afterwards.
func (f *Feedback) Validate() error {
	if f.ScanID == "" {
		return errors.New("scan_id is required")
	}
	if f.Rating < 1 || f.Rating > 5 {
		return errors.New("rating must be between 1 and 5")
	}
	return nil
}

// FeedbackStore persists feedback submissions.
type FeedbackStore interface {
	SaveFeedback(ctx context.Context, f Feedback) error
}
