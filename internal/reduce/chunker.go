// Package reduce shrinks document text to a bounded token budget by chunking and
// recursive pairwise summarization.
package reduce

import (
	"fmt"

	"github.com/spherical-ai/appraisal/internal/domain"
)

// Split divides text into n contiguous units of len(text)/n bytes. The last unit
// absorbs the remainder, so concatenating the units reproduces text exactly.
func Split(text string, n int) ([]domain.TextUnit, error) {
	if n <= 0 {
		return nil, domain.InvalidArgument(fmt.Sprintf("chunk count must be positive, got %d", n), nil)
	}

	size := len(text) / n
	units := make([]domain.TextUnit, n)
	for i := 0; i < n; i++ {
		start := i * size
		end := start + size
		if i == n-1 {
			end = len(text)
		}
		units[i] = domain.TextUnit{Text: text[start:end]}
	}
	return units, nil
}
