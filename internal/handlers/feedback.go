package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"cropscan-gateway/internal/persist"
	"cropscan-gateway/internal/pipeline"
	"cropscan-gateway/pkg/logging/logging"
)

type feedbackRequest struct {
	ScanID     string `json:"scanId"`
	Rating     int    `json:"rating"`
	Comment    string `json:"comment,omitempty"`
	Correction string `json:"correction,omitempty"`
}

// Feedback handles POST /v1/feedback. Validation is synchronous; a
// storage failure surfaces as 500, unlike the training-log path.
func (h *Handler) Feedback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.L(ctx)

	var req feedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid feedback request", zap.Error(err))
		h.writeError(w, http.StatusBadRequest, "invalid_request", "request body must be valid JSON", err)
		return
	}

	err := h.Service.SubmitFeedback(ctx, persist.Feedback{
		ScanID:     req.ScanID,
		Rating:     req.Rating,
		Comment:    req.Comment,
		Correction: req.Correction,
	})
	if err != nil {
		var verr *pipeline.ValidationError
		if errors.As(err, &verr) {
			h.writeError(w, http.StatusBadRequest, "invalid_request", verr.Reason, nil)
			return
		}

		logger.Error("feedback storage failed", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "feedback_failed",
			"could not store feedback, please try again", err)
		return
	}

	logger.Info("feedback accepted", zap.String("scan_id", req.ScanID), zap.Int("rating", req.Rating))

	h.writeJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
}
