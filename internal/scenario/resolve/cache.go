package resolve

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/steiner385/capacinator/internal/scenario/domain"
)

// CacheStore extends the resolver's read surface with the freshness probe the
// cache keys on.
type CacheStore interface {
	Store
	LatestDeltaUpdate(ctx context.Context, scenarioIDs []string) (time.Time, error)
}

type cacheEntry struct {
	fingerprint string
	state       State
}

// Cache memoizes resolved states per scenario. An entry is valid only while
// the scenario's ancestor chain, the newest delta timestamp along it, and the
// newest scenario row touch are all unchanged, so any write to the chain
// invalidates the entry on the next lookup without explicit eviction hooks.
type Cache struct {
	store    CacheStore
	resolver *Resolver

	mu      sync.RWMutex
	entries map[string]cacheEntry
}

// NewCache creates a resolution cache around its own Resolver.
func NewCache(store CacheStore, maxDepth int) *Cache {
	return &Cache{
		store:    store,
		resolver: New(store, maxDepth),
		entries:  make(map[string]cacheEntry),
	}
}

// Resolve returns the scenario's effective state, reusing a memoized fold
// when the chain fingerprint still matches. Returned states are clones, so
// callers may mutate them freely.
func (c *Cache) Resolve(ctx context.Context, scenarioID string) (State, error) {
	chain, err := c.resolver.Chain(ctx, scenarioID)
	if err != nil {
		return State{}, err
	}

	ids := make([]string, len(chain))
	var latestScenario time.Time
	for i, scenario := range chain {
		ids[i] = scenario.ID
		if scenario.UpdatedAt.After(latestScenario) {
			latestScenario = scenario.UpdatedAt
		}
	}
	latestDelta, err := c.store.LatestDeltaUpdate(ctx, ids)
	if err != nil {
		return State{}, err
	}
	fingerprint := chainFingerprint(ids, latestDelta, latestScenario)

	c.mu.RLock()
	entry, ok := c.entries[scenarioID]
	c.mu.RUnlock()
	if ok && entry.fingerprint == fingerprint {
		return entry.state.Clone(), nil
	}

	state, err := c.resolver.resolveChain(ctx, scenarioID, chain)
	if err != nil {
		return State{}, err
	}

	c.mu.Lock()
	c.entries[scenarioID] = cacheEntry{fingerprint: fingerprint, state: state.Clone()}
	c.mu.Unlock()
	return state, nil
}

// Chain exposes the underlying resolver's ancestor walk.
func (c *Cache) Chain(ctx context.Context, scenarioID string) ([]domain.Scenario, error) {
	return c.resolver.Chain(ctx, scenarioID)
}

// Invalidate drops any memoized state for the scenario.
func (c *Cache) Invalidate(scenarioID string) {
	c.mu.Lock()
	delete(c.entries, scenarioID)
	c.mu.Unlock()
}

// chainFingerprint identifies one resolution input: the exact ancestor path,
// the newest delta write along it, and the newest scenario row touch, in
// milliseconds to match storage precision. Delta deletion is visible only
// through the scenario timestamp; the delta maximum can stay put.
func chainFingerprint(ids []string, latestDelta, latestScenario time.Time) string {
	return strings.Join(ids, "/") + "@" +
		strconv.FormatInt(latestDelta.UnixMilli(), 10) + "/" +
		strconv.FormatInt(latestScenario.UnixMilli(), 10)
}
