// Package extract turns reduced document text into "key: value" property lines
// through the language model.
package extract

import (
	"context"
	"strings"
	"time"

	"github.com/spherical-ai/appraisal/internal/domain"
	"github.com/spherical-ai/appraisal/internal/observability"
)

// Conversation is the stateful chat capability the extractor speaks through.
type Conversation interface {
	Ask(ctx context.Context, user string) (string, error)
}

// Extractor runs feature extraction over single text units.
type Extractor struct {
	conv   Conversation
	logger *observability.Logger
}

// NewExtractor creates an extractor. conv should carry SystemPrompt as its system turn.
func NewExtractor(conv Conversation, logger *observability.Logger) *Extractor {
	return &Extractor{
		conv:   conv,
		logger: observability.OrNop(logger).WithComponent("extractor"),
	}
}

// Extract returns the raw extraction text for unit. Any capability failure is
// reported as an extraction_failed error wrapping the cause, so callers can skip
// the unit and keep going.
func (e *Extractor) Extract(ctx context.Context, unit domain.TextUnit) (string, error) {
	if strings.TrimSpace(unit.Text) == "" {
		return "", domain.ExtractionFailed("empty text unit", nil)
	}

	start := time.Now()
	reply, err := e.conv.Ask(ctx, unit.Text)
	if err != nil {
		e.logger.Warn().Err(err).Int("tokens", unit.Tokens()).Msg("Extraction failed")
		return "", domain.ExtractionFailed("extract features", err)
	}

	out := cleanReply(reply)
	e.logger.Debug().
		Int("tokens", unit.Tokens()).
		Int("lines", strings.Count(out, "\n")+1).
		Dur("duration", time.Since(start)).
		Msg("Features extracted")

	return out, nil
}

// cleanReply removes codeblock fences the model sometimes adds despite the prompt.
func cleanReply(content string) string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```text")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	return strings.TrimSpace(content)
}
