// Package pipeline composes cache, identification, analysis and
// persistence into the end-to-end request flow. It is the only component
// the HTTP layer talks to.
package pipeline

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"cropscan-gateway/internal/analyze"
	"cropscan-gateway/internal/cache"
	"cropscan-gateway/internal/identify"
	"cropscan-gateway/internal/persist"
	"cropscan-gateway/pkg/logging/logging"
)

// Config carries the TTL classes. Analysis results get a short TTL because
// the underlying models and prompts change; question answers are more
// stable and cheaper to keep.
type Config struct {
	AnalysisTTL time.Duration // default: 24h
	QuestionTTL time.Duration // default: 7d
	VersionID   string        // cache invalidation handle, default: v1
}

func (c Config) withDefaults() Config {
	if c.AnalysisTTL <= 0 {
		c.AnalysisTTL = 24 * time.Hour
	}
	if c.QuestionTTL <= 0 {
		c.QuestionTTL = 7 * 24 * time.Hour
	}
	if c.VersionID == "" {
		c.VersionID = "v1"
	}
	return c
}

// Service is constructed once at startup and shared across requests. The
// cache store and the rate limiter (applied upstream in middleware) are
// the only shared mutable state; per-request pipeline stages run
// sequentially.
type Service struct {
	cfg      Config
	cache    cache.Store
	chain    *identify.Chain
	stage    *analyze.Stage
	training *persist.TrainingLogger
	feedback persist.FeedbackStore
}

func NewService(
	cfg Config,
	store cache.Store,
	chain *identify.Chain,
	stage *analyze.Stage,
	training *persist.TrainingLogger,
	feedback persist.FeedbackStore,
) *Service {
	return &Service{
		cfg:      cfg.withDefaults(),
		cache:    store,
		chain:    chain,
		stage:    stage,
		training: training,
		feedback: feedback,
	}
}

// AnalysisRequest is the immutable per-call input after transport decoding.
type AnalysisRequest struct {
	Image    []byte
	CloseUp  []byte
	Category string
	Locale   string
	Location string
}

// Outcome wraps the result with cache provenance. ScanID correlates later
// feedback with this analysis.
type Outcome struct {
	ScanID string          `json:"scan_id"`
	Result *analyze.Result `json:"result"`
	Cached bool            `json:"-"`
}

// AnalyzeImage runs the fixed stage order: fingerprint, cache lookup,
// identification chain, analysis stage, cache write, async training log.
// Two concurrent requests for the same fingerprint may both miss and both
// invoke providers; the last cache write wins, which is acceptable.
func (s *Service) AnalyzeImage(ctx context.Context, req AnalysisRequest) (*Outcome, error) {
	logger := logging.L(ctx)

	locale, err := normalizeLocale(req.Locale)
	if err != nil {
		return nil, err
	}
	if len(req.Image) == 0 {
		return nil, validationErr("primary image is required")
	}

	key := cache.ImageKey(req.Image, locale, s.cfg.VersionID)
	cacheKey := key.String()

	if cached, hit := s.cacheGet(ctx, cacheKey); hit {
		var out Outcome
		if err := json.Unmarshal(cached, &out); err != nil {
			logger.Warn("cached analysis unmarshal failed, treating as miss", zap.Error(err))
		} else {
			out.Cached = true
			return &out, nil
		}
	}

	// Identification must finish (successfully or not) before analysis:
	// the prompt depends on its outcome.
	id := s.chain.Identify(ctx, identify.Request{
		Image:        req.Image,
		CategoryHint: req.Category,
		Locale:       locale,
	})

	result, err := s.stage.Analyze(ctx, analyze.Input{
		Identification: id,
		Image:          req.Image,
		CloseUp:        req.CloseUp,
		Category:       req.Category,
		Locale:         locale,
		Location:       req.Location,
	})
	if err != nil {
		return nil, err
	}

	out := &Outcome{
		ScanID: uuid.NewString(),
		Result: result,
	}

	if payload, err := json.Marshal(out); err != nil {
		logger.Warn("marshal outcome for cache failed", zap.Error(err))
	} else if err := s.cache.Set(ctx, cacheKey, payload, s.cfg.AnalysisTTL); err != nil {
		logger.Warn("cache write failed", zap.Error(err))
	}

	if s.training != nil {
		s.training.Log(persist.TrainingRecord{
			ID:          out.ScanID,
			Fingerprint: key.Hash,
			Category:    req.Category,
			Locale:      locale,
			Location:    req.Location,
			Image:       req.Image,
			CloseUp:     req.CloseUp,
			Result:      result,
		})
	}

	return out, nil
}

// Answer is the Q&A response envelope.
type Answer struct {
	Answer    string    `json:"answer"`
	Timestamp time.Time `json:"timestamp"`
	Cached    bool      `json:"-"`
}

// AnswerQuestion serves the free-text path with the long TTL class.
func (s *Service) AnswerQuestion(ctx context.Context, question, locale string) (*Answer, error) {
	logger := logging.L(ctx)

	loc, err := normalizeLocale(locale)
	if err != nil {
		return nil, err
	}
	if cache.NormalizeQuestion(question) == "" {
		return nil, validationErr("question is required")
	}

	key := cache.QuestionKey(question, loc, s.cfg.VersionID).String()

	if cached, hit := s.cacheGet(ctx, key); hit {
		var ans Answer
		if err := json.Unmarshal(cached, &ans); err != nil {
			logger.Warn("cached answer unmarshal failed, treating as miss", zap.Error(err))
		} else {
			ans.Cached = true
			return &ans, nil
		}
	}

	text, err := s.stage.Answer(ctx, question, loc)
	if err != nil {
		return nil, err
	}

	ans := &Answer{
		Answer:    text,
		Timestamp: time.Now().UTC(),
	}

	if payload, err := json.Marshal(ans); err != nil {
		logger.Warn("marshal answer for cache failed", zap.Error(err))
	} else if err := s.cache.Set(ctx, key, payload, s.cfg.QuestionTTL); err != nil {
		logger.Warn("cache write failed", zap.Error(err))
	}

	return ans, nil
}

// SubmitFeedback validates synchronously and stores the submission. A
// storage failure here does surface, unlike the training-log path.
func (s *Service) SubmitFeedback(ctx context.Context, f persist.Feedback) error {
	if err := f.Validate(); err != nil {
		return &ValidationError{Reason: err.Error()}
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}
	return s.feedback.SaveFeedback(ctx, f)
}

// cacheGet treats cache errors as misses; the cache is best-effort.
func (s *Service) cacheGet(ctx context.Context, key string) ([]byte, bool) {
	value, hit, err := s.cache.Get(ctx, key)
	if err != nil {
		logging.L(ctx).Warn("cache read failed, treating as miss", zap.Error(err))
		return nil, false
	}
	return value, hit
}

func normalizeLocale(locale string) (string, error) {
	switch locale {
	case "":
		return "en", nil
	case "en", "ms":
		return locale, nil
	default:
		return "", validationErr("unsupported locale %q", locale)
	}
}
