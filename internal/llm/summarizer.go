package llm

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/spherical-ai/appraisal/internal/domain"
)

const summarySystemPrompt = `You condense real-estate documents.
Keep every property-level fact: status, price, bedrooms, bathrooms, lot size in acres,
city, state, zip code and house size. Drop boilerplate, marketing language and legal text.
Reply with the condensed text only.`

// Summarizer implements domain.Summarizer with a stateless chat call.
type Summarizer struct {
	model domain.ChatModel
}

var _ domain.Summarizer = (*Summarizer)(nil)

// NewSummarizer creates a summarizer backed by model.
func NewSummarizer(model domain.ChatModel) *Summarizer {
	return &Summarizer{model: model}
}

// Summarize asks for a summary between minRatio and maxRatio of len(text) characters.
// Replies longer than the upper bound are cut at the bound.
func (s *Summarizer) Summarize(ctx context.Context, text string, minRatio, maxRatio float64) (string, error) {
	if minRatio <= 0 || maxRatio > 1 || minRatio > maxRatio {
		return "", domain.InvalidArgument(fmt.Sprintf("invalid summary ratios %.2f..%.2f", minRatio, maxRatio), nil)
	}
	if strings.TrimSpace(text) == "" {
		return "", nil
	}

	minChars := int(minRatio * float64(len(text)))
	maxChars := int(maxRatio * float64(len(text)))

	prompt := fmt.Sprintf("Summarize the following text in %d to %d characters.\n\n%s", minChars, maxChars, text)
	out, err := s.model.Send(ctx, summarySystemPrompt, nil, prompt)
	if err != nil {
		return "", err
	}

	return truncate(strings.TrimSpace(out), maxChars), nil
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
