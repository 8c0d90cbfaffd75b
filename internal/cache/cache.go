package cache

import (
	"context"
	"crypto/sha1" //nolint:gosec // cache key derivation only
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/newsradar-io/newsradar/internal/domain"
)

// DefaultTTL is tuned to provider refresh cadence, not request latency.
const DefaultTTL = 5 * time.Minute

// Cache is a TTL key-value store for aggregate results. Implementations
// must degrade gracefully: a broken backend behaves exactly like a cold
// cache (Get misses, Set and Invalidate are no-ops) so callers never branch
// on availability.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
	Invalidate(ctx context.Context, pattern string)
}

// QueryKey derives a deterministic cache key from the aggregation query and
// the options that influence the result, so identical queries within the
// TTL share an entry.
func QueryKey(q domain.Query, sourcePriority string, minCredibility float64) string {
	raw := strings.Join([]string{
		strings.ToLower(strings.TrimSpace(q.Text)),
		strings.ToLower(strings.TrimSpace(q.Category)),
		strings.ToLower(strings.TrimSpace(q.Country)),
		strings.ToLower(strings.TrimSpace(q.Language)),
		fmt.Sprintf("%d", q.Limit),
		strings.ToLower(strings.TrimSpace(sourcePriority)),
		fmt.Sprintf("%.2f", minCredibility),
	}, "|")

	sum := sha1.Sum([]byte(raw))
	return "newsradar:aggregate:" + hex.EncodeToString(sum[:])
}
