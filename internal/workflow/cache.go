package workflow

import (
	"encoding/json"
	"sync"

	"github.com/duskpoint/reverie/internal/tools"
)

// ToolCache memoizes data-tool results for the lifetime of one workflow run.
// Data tools are assumed idempotent within a run's time window, so a cache
// hit returns the prior result without re-dispatching. The cache is private
// to its run and must never be shared across runs.
type ToolCache struct {
	mu      sync.Mutex
	entries map[string]*tools.Result
	hits    int
	misses  int
}

// NewToolCache creates an empty per-run cache.
func NewToolCache() *ToolCache {
	return &ToolCache{entries: make(map[string]*tools.Result)}
}

// Key derives the stable cache key for a tool invocation. encoding/json
// marshals map keys in sorted order, which gives a canonical serialization
// for equal argument maps regardless of insertion order.
func Key(toolName string, args map[string]any) string {
	canonical, err := json.Marshal(args)
	if err != nil {
		canonical = []byte("{}")
	}
	return toolName + "\x00" + string(canonical)
}

// Get returns the cached result for the key, if present.
func (c *ToolCache) Get(key string) (*tools.Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	res, ok := c.entries[key]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return res, ok
}

// Put stores a result under the key. Failures are cached too: within one run
// a deterministic failure is not worth re-dispatching.
func (c *ToolCache) Put(key string, res *tools.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = res
}

// Stats returns hit and miss counters.
func (c *ToolCache) Stats() (hits, misses int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}
