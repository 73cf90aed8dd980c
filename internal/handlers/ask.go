package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"cropscan-gateway/pkg/logging/logging"
)

type askRequest struct {
	Question string `json:"question"`
	Locale   string `json:"locale"`
}

type askResponse struct {
	Answer    string    `json:"answer"`
	Cached    bool      `json:"cached"`
	Timestamp time.Time `json:"timestamp"`
}

// Ask handles POST /v1/ask, the free-text Q&A path.
func (h *Handler) Ask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.L(ctx)

	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid ask request", zap.Error(err))
		h.writeError(w, http.StatusBadRequest, "invalid_request", "request body must be valid JSON", err)
		return
	}

	ans, err := h.Service.AnswerQuestion(ctx, req.Question, req.Locale)
	if err != nil {
		h.respondPipelineError(w, logger, err)
		return
	}

	logger.Info("ask request served", zap.Bool("cached", ans.Cached))

	h.writeJSON(w, http.StatusOK, askResponse{
		Answer:    ans.Answer,
		Cached:    ans.Cached,
		Timestamp: ans.Timestamp,
	})
}
