package analyze

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"cropscan-gateway/internal/fallback"
	"cropscan-gateway/internal/identify"
	"cropscan-gateway/internal/metrics"
	"cropscan-gateway/pkg/logging/logging"
)

// Input is one analysis request after identification has completed
// (successfully or not).
type Input struct {
	Identification *identify.Identification
	Image          []byte
	CloseUp        []byte
	Category       string
	Locale         string
	Location       string
}

// Stage invokes the primary analysis model and, on any provider or parse
// failure, retries exactly once against the secondary model with the
// identical prompt.
type Stage struct {
	models []Model
	now    func() time.Time
}

func NewStage(primary, secondary Model) *Stage {
	models := []Model{primary}
	if secondary != nil {
		models = append(models, secondary)
	}
	return &Stage{
		models: models,
		now:    time.Now,
	}
}

// WithClock overrides the season clock, for tests.
func (s *Stage) WithClock(now func() time.Time) *Stage {
	s.now = now
	return s
}

// Analyze produces the structured result or fails with a ProviderError /
// ErrUnparsable from the last model attempted.
func (s *Stage) Analyze(ctx context.Context, in Input) (*Result, error) {
	logger := logging.L(ctx)
	start := time.Now()

	prompt := BuildPrompt(PromptInput{
		Identification: in.Identification,
		Category:       in.Category,
		Locale:         in.Locale,
		Location:       in.Location,
		Month:          s.now().Month(),
		HasCloseUp:     len(in.CloseUp) > 0,
	})

	images := [][]byte{in.Image}
	if len(in.CloseUp) > 0 {
		images = append(images, in.CloseUp)
	}

	strategies := make([]fallback.Strategy[*Result], 0, len(s.models))
	for _, m := range s.models {
		m := m
		strategies = append(strategies, fallback.Strategy[*Result]{
			Name: m.Name(),
			Run: func(ctx context.Context) (*Result, error) {
				raw, err := m.Complete(ctx, prompt, images)
				if err != nil {
					return nil, err
				}
				r, err := parseResult(raw)
				if err != nil {
					return nil, err
				}
				r.Model = m.Name()
				return r, nil
			},
		})
	}

	result, winner, err := fallback.Attempt(ctx, strategies, func(name string, err error) {
		metrics.ProviderFallbacksTotal.WithLabelValues("analyze").Inc()
		logger.Warn("analysis model failed, falling back",
			zap.String("model", name),
			zap.Error(err),
		)
	})
	if err != nil {
		logger.Error("analysis failed on all models",
			zap.Error(err),
			zap.Duration("duration", time.Since(start)),
		)
		return nil, err
	}

	result.Identification = in.Identification
	result.Normalize()

	logger.Info("analysis completed",
		zap.String("model", winner),
		zap.String("condition", result.Condition),
		zap.String("health_status", string(result.HealthStatus)),
		zap.String("severity", string(result.Severity)),
		zap.Duration("duration", time.Since(start)),
	)

	return result, nil
}

// Answer handles the free-text Q&A path on the same model fallback. The
// models run in JSON mode, so the answer is requested as {"answer": ...}
// and extracted with the same fail-closed parsing as the analysis path.
func (s *Stage) Answer(ctx context.Context, question, locale string) (string, error) {
	logger := logging.L(ctx)

	var b strings.Builder
	b.WriteString("You are an experienced tropical agronomist advising smallholder farmers. ")
	if locale == "ms" {
		b.WriteString("Jawab soalan petani ini dalam Bahasa Melayu, secara ringkas dan praktikal. ")
	} else {
		b.WriteString("Answer the farmer's question concisely and practically. ")
	}
	b.WriteString(`Respond with a single JSON object: {"answer": string}.` + "\nQuestion: ")
	b.WriteString(question)
	prompt := b.String()

	strategies := make([]fallback.Strategy[string], 0, len(s.models))
	for _, m := range s.models {
		m := m
		strategies = append(strategies, fallback.Strategy[string]{
			Name: m.Name(),
			Run: func(ctx context.Context) (string, error) {
				raw, err := m.Complete(ctx, prompt, nil)
				if err != nil {
					return "", err
				}
				return parseAnswer(raw)
			},
		})
	}

	answer, _, err := fallback.Attempt(ctx, strategies, func(name string, err error) {
		metrics.ProviderFallbacksTotal.WithLabelValues("question").Inc()
		logger.Warn("question model failed, falling back",
			zap.String("model", name),
			zap.Error(err),
		)
	})
	return answer, err
}
