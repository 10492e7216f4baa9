// Package scenes caches the OBS scene list used to validate and autocomplete
// scene-switch commands.
//
// The cache never expires on its own. It is filled on the first query that
// needs it and replaced wholesale on every successful refresh; a failed
// refresh keeps serving the previous list.
package scenes

import (
	"context"
	"log/slog"
	"strings"
	"sync"
)

// DefaultLimit bounds autocomplete responses.
const DefaultLimit = 25

// FetchFunc returns the current scene names from the control API.
type FetchFunc func(ctx context.Context) ([]string, error)

// Cache is safe for concurrent use. The fetch itself runs without the lock held.
type Cache struct {
	mu        sync.RWMutex
	names     []string
	populated bool
}

// NewCache returns an empty, unpopulated cache.
func NewCache() *Cache {
	return &Cache{}
}

// Refresh calls fetch and replaces the cached names on success. On error the
// previous contents are returned unchanged, or an empty list if the cache was
// never populated.
func (c *Cache) Refresh(ctx context.Context, fetch FetchFunc) []string {
	names, err := fetch(ctx)
	if err != nil {
		slog.Debug("scene refresh failed; serving cached list", slog.Any("err", err), slog.String("component", "scene_cache"))
		return c.Names()
	}
	fresh := append([]string(nil), names...)

	c.mu.Lock()
	c.names = fresh
	c.populated = true
	c.mu.Unlock()

	return append([]string(nil), fresh...)
}

// Names returns a copy of the cached names (empty when never populated).
func (c *Cache) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string{}, c.names...)
}

// Populated reports whether a refresh has ever succeeded.
func (c *Cache) Populated() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.populated
}

// Empty reports whether there are no cached names.
func (c *Cache) Empty() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.names) == 0
}

// MatchPrefix returns cached names containing query (case-insensitive), in
// cache order, truncated to limit. A non-positive limit means DefaultLimit.
func (c *Cache) MatchPrefix(query string, limit int) []string {
	if limit <= 0 {
		limit = DefaultLimit
	}
	q := strings.ToLower(query)

	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, min(limit, len(c.names)))
	for _, name := range c.names {
		if len(out) == limit {
			break
		}
		if strings.Contains(strings.ToLower(name), q) {
			out = append(out, name)
		}
	}
	return out
}
