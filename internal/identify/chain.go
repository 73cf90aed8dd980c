package identify

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"cropscan-gateway/internal/fallback"
	"cropscan-gateway/internal/metrics"
	"cropscan-gateway/pkg/logging/logging"
)

// Chain tries providers in order and stops at the first success. A chain
// where every provider fails is not an error: the request proceeds to
// analysis without an identification.
type Chain struct {
	providers []Provider
}

func NewChain(providers ...Provider) *Chain {
	return &Chain{providers: providers}
}

// Identify returns the first successful identification, or nil when every
// provider failed. Provider failures are logged and counted, never
// propagated: the caller cannot distinguish "all providers down" from
// "unidentifiable photo", and must not need to.
func (c *Chain) Identify(ctx context.Context, req Request) *Identification {
	if len(c.providers) == 0 {
		return nil
	}

	logger := logging.L(ctx)
	start := time.Now()

	strategies := make([]fallback.Strategy[*Identification], 0, len(c.providers))
	for _, p := range c.providers {
		p := p
		strategies = append(strategies, fallback.Strategy[*Identification]{
			Name: p.Name(),
			Run: func(ctx context.Context) (*Identification, error) {
				id, err := p.Identify(ctx, req)
				if err != nil {
					return nil, err
				}
				if id == nil {
					// A provider that answers with nothing is a miss,
					// not a success; try the next one.
					return nil, &fallback.ProviderError{
						Provider: p.Name(),
						Err:      errors.New("no identification returned"),
					}
				}
				return id, nil
			},
		})
	}

	result, winner, err := fallback.Attempt(ctx, strategies, func(name string, err error) {
		metrics.ProviderFallbacksTotal.WithLabelValues("identify").Inc()
		logger.Warn("identification provider failed, falling back",
			zap.String("provider", name),
			zap.Error(err),
		)
	})
	if err != nil {
		logger.Warn("identification unavailable, proceeding without it",
			zap.Error(err),
			zap.Duration("duration", time.Since(start)),
		)
		return nil
	}

	logger.Info("identification resolved",
		zap.String("provider", winner),
		zap.String("scientific_name", result.ScientificName),
		zap.Float64("confidence", result.Confidence),
		zap.Duration("duration", time.Since(start)),
	)

	return result
}
