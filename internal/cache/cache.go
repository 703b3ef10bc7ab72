// Package cache provides caching and model-update notification infrastructure.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrCacheMiss indicates a cache miss.
var ErrCacheMiss = errors.New("cache miss")

// Client defines the cache interface.
type Client interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// CacheKey generates a cache key from components.
func CacheKey(parts ...string) string {
	return strings.Join(parts, ":")
}

// SummaryKey identifies a summary by the digest of its input and the ratio bounds.
func SummaryKey(text string, minRatio, maxRatio float64) string {
	sum := sha256.Sum256([]byte(text))
	return CacheKey("summary", hex.EncodeToString(sum[:]), fmt.Sprintf("%.3f-%.3f", minRatio, maxRatio))
}
