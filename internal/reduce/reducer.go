package reduce

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spherical-ai/appraisal/internal/domain"
	"github.com/spherical-ai/appraisal/internal/observability"
)

// Config controls when and how aggressively text is reduced.
type Config struct {
	// TokenCeiling is the per-unit budget. Text at or under it passes through untouched.
	TokenCeiling int
	MinRatio     float64
	MaxRatio     float64
	// KeepUnpaired keeps the trailing summary when a pass yields an odd count.
	// When false it is dropped.
	KeepUnpaired bool
}

// DefaultConfig returns the standard reduction settings.
func DefaultConfig() Config {
	return Config{
		TokenCeiling: 900,
		MinRatio:     0.4,
		MaxRatio:     0.6,
	}
}

// Reducer turns arbitrarily long text into units that fit the extraction budget.
type Reducer struct {
	summarizer domain.Summarizer
	cfg        Config
	logger     *observability.Logger
}

// NewReducer creates a reducer backed by the given summarizer.
func NewReducer(summarizer domain.Summarizer, cfg Config, logger *observability.Logger) *Reducer {
	if cfg.TokenCeiling <= 0 {
		cfg.TokenCeiling = DefaultConfig().TokenCeiling
	}
	if cfg.MinRatio <= 0 || cfg.MaxRatio <= 0 {
		cfg.MinRatio, cfg.MaxRatio = DefaultConfig().MinRatio, DefaultConfig().MaxRatio
	}
	return &Reducer{
		summarizer: summarizer,
		cfg:        cfg,
		logger:     observability.OrNop(logger).WithComponent("reducer"),
	}
}

// Reduce returns the units to extract from. Text within the ceiling comes back as a
// single unchanged unit. Longer text is chunked, summarized and pooled pairwise, with
// a second pass when it exceeds twice the ceiling.
func (r *Reducer) Reduce(ctx context.Context, text string) ([]domain.TextUnit, error) {
	ceiling := r.cfg.TokenCeiling
	tokens := domain.EstimateTokens(text)

	if tokens <= ceiling {
		return []domain.TextUnit{{Text: text}}, nil
	}

	start := time.Now()
	numChunks := tokens / ceiling
	if numChunks < 1 {
		numChunks = 1
	}

	// Floor division keeps every chunk at or above the ceiling, so no runt tail exists.
	chunks, err := Split(text, numChunks)
	if err != nil {
		return nil, err
	}

	r.logger.Info().
		Int("tokens", tokens).
		Int("chunks", len(chunks)).
		Msg("Reducing document")

	units, err := r.pass(ctx, chunks, 1)
	if err != nil {
		return nil, err
	}

	if tokens > 2*ceiling {
		units, err = r.pass(ctx, units, 2)
		if err != nil {
			return nil, err
		}
	}

	r.logger.Info().
		Int("tokens", tokens).
		Int("units", len(units)).
		Dur("duration", time.Since(start)).
		Msg("Document reduced")

	return units, nil
}

// pass summarizes every unit then pools the summaries pairwise.
func (r *Reducer) pass(ctx context.Context, units []domain.TextUnit, n int) ([]domain.TextUnit, error) {
	summaries := make([]string, len(units))
	for i, u := range units {
		if err := ctx.Err(); err != nil {
			return nil, domain.ReductionFailed("reduction cancelled", err)
		}
		s, err := r.summarizer.Summarize(ctx, u.Text, r.cfg.MinRatio, r.cfg.MaxRatio)
		if err != nil {
			return nil, domain.ReductionFailed(fmt.Sprintf("summarize chunk %d of %d", i+1, len(units)), err)
		}
		summaries[i] = s
	}

	pooled := Pool(summaries, r.cfg.KeepUnpaired)

	evt := r.logger.Debug().
		Int("pass", n).
		Int("in", len(units)).
		Int("out", len(pooled))
	if len(summaries)%2 == 1 && !r.cfg.KeepUnpaired {
		evt = evt.Bool("dropped_unpaired", true)
	}
	evt.Msg("Reduction pass complete")

	return pooled, nil
}

// Pool concatenates adjacent summaries (0+1, 2+3, ...) with a single space.
// A trailing unpaired summary is kept only when keepUnpaired is set.
func Pool(summaries []string, keepUnpaired bool) []domain.TextUnit {
	out := make([]domain.TextUnit, 0, (len(summaries)+1)/2)
	for i := 0; i+1 < len(summaries); i += 2 {
		out = append(out, domain.TextUnit{Text: strings.Join(summaries[i:i+2], " ")})
	}
	if keepUnpaired && len(summaries)%2 == 1 {
		out = append(out, domain.TextUnit{Text: summaries[len(summaries)-1]})
	}
	return out
}
