package aggregate

import (
	"context"
	"log/slog"

	"github.com/esats/OrderDispatcher.Apigateway/internal/downstream"
)

// collectKeys extracts the foreign keys of a primary record set: one key per
// record via the accessor, filtered by keep, deduplicated in first-seen
// order. It always returns a non-nil slice, even for empty input.
func collectKeys[R any, K comparable](records []R, key func(R) K, keep func(K) bool) []K {
	keys := make([]K, 0, len(records))
	seen := make(map[K]struct{}, len(records))
	for _, r := range records {
		k := key(r)
		if !keep(k) {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	return keys
}

// positiveID keeps integer keys greater than zero.
func positiveID(id int) bool { return id > 0 }

// nonEmptyID keeps non-empty string keys.
func nonEmptyID(id string) bool { return id != "" }

// indexBy folds a slice into a key→value map. The remote batch endpoints
// return at most one entry per key, so collisions are not a concern.
func indexBy[K comparable, V any](items []V, keyOf func(V) K) map[K]V {
	m := make(map[K]V, len(items))
	for _, item := range items {
		m[keyOf(item)] = item
	}
	return m
}

// values returns the values of a map as a slice, in no particular order.
func values[K comparable, V any](m map[K]V) []V {
	out := make([]V, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	return out
}

// batchLookup issues one best-effort batched POST for the given key set and
// folds the response into a key→value map. An empty key set short-circuits
// without a network call. Any failure (non-success status, transport error,
// decode error) degrades to an empty map so a join can never abort the
// pipeline.
func batchLookup[K comparable, V any](
	ctx context.Context,
	c *downstream.Client,
	path string,
	keys []K,
	body func([]K) any,
	keyOf func(V) K,
	auth string,
	logger *slog.Logger,
) map[K]V {
	if len(keys) == 0 {
		return map[K]V{}
	}

	items, err := postJSON[[]V](ctx, c, path, body(keys), auth)
	if err != nil {
		logger.WarnContext(ctx, "batch lookup degraded to empty result",
			slog.String("service", c.Name()),
			slog.String("path", path),
			slog.Int("keys", len(keys)),
			slog.String("error", err.Error()),
		)
		return map[K]V{}
	}

	return indexBy(items, keyOf)
}
