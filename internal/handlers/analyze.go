package handlers

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"cropscan-gateway/internal/analyze"
	"cropscan-gateway/internal/pipeline"
	"cropscan-gateway/pkg/logging/logging"
)

type analyzeRequest struct {
	PrimaryImage   string `json:"primaryImage"`
	SecondaryImage string `json:"secondaryImage,omitempty"`
	Category       string `json:"category"`
	Locale         string `json:"locale"`
	Location       string `json:"location,omitempty"`
}

type analyzeResponse struct {
	ScanID string          `json:"scanId"`
	Cached bool            `json:"cached"`
	Result *analyze.Result `json:"result"`
}

// Analyze handles POST /v1/analyze.
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.L(ctx)
	start := time.Now()

	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid analyze request", zap.Error(err))
		h.writeError(w, http.StatusBadRequest, "invalid_request", "request body must be valid JSON", err)
		return
	}

	primary, err := decodeImage(req.PrimaryImage)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "primaryImage must be base64-encoded image data", err)
		return
	}

	var secondary []byte
	if req.SecondaryImage != "" {
		if secondary, err = decodeImage(req.SecondaryImage); err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid_request", "secondaryImage must be base64-encoded image data", err)
			return
		}
	}

	out, err := h.Service.AnalyzeImage(ctx, pipeline.AnalysisRequest{
		Image:    primary,
		CloseUp:  secondary,
		Category: req.Category,
		Locale:   req.Locale,
		Location: req.Location,
	})
	if err != nil {
		h.respondPipelineError(w, logger, err)
		return
	}

	logger.Info("analyze request served",
		zap.String("scan_id", out.ScanID),
		zap.Bool("cached", out.Cached),
		zap.Duration("total_latency", time.Since(start)),
	)

	h.writeJSON(w, http.StatusOK, analyzeResponse{
		ScanID: out.ScanID,
		Cached: out.Cached,
		Result: out.Result,
	})
}

func (h *Handler) respondPipelineError(w http.ResponseWriter, logger *zap.Logger, err error) {
	var verr *pipeline.ValidationError
	if errors.As(err, &verr) {
		h.writeError(w, http.StatusBadRequest, "invalid_request", verr.Reason, nil)
		return
	}

	if errors.Is(err, analyze.ErrUnparsable) {
		logger.Error("analysis response unparsable", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "analysis_failed",
			"analysis is temporarily unavailable, please try again", err)
		return
	}

	logger.Error("pipeline failure", zap.Error(err))
	h.writeError(w, http.StatusInternalServerError, "analysis_failed",
		"analysis is temporarily unavailable, please try again", err)
}

// decodeImage accepts plain base64 or a full data URL, which is what
// browser canvas exports produce.
func decodeImage(s string) ([]byte, error) {
	if s == "" {
		return nil, errors.New("empty image")
	}

	if strings.HasPrefix(s, "data:") {
		if idx := strings.Index(s, ","); idx >= 0 {
			s = s[idx+1:]
		}
	}

	decoded, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, err
	}
	if len(decoded) == 0 {
		return nil, errors.New("empty image")
	}
	return decoded, nil
}
