// Package cache implements the keyed entity cache that backs every read in
// the client. Entries hold server-owned values (posts, comments, users)
// with freshness state; mutations mark keys stale through the invalidation
// router and the next read refetches.
//
// Concurrency model: concurrent reads of one key share a single in-flight
// fetch (singleflight). Each key carries a monotonically increasing
// generation counter; a fetch that was superseded by a newer invalidation
// for the same key is dropped on completion instead of overwriting fresher
// intent. Unrelated keys fetch fully in parallel.
package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Status describes the freshness of a cache entry.
type Status string

const (
	// StatusFresh means the value reflects the latest known server state.
	StatusFresh Status = "fresh"

	// StatusStale means the value is present but a mutation invalidated it;
	// the next read triggers a refetch.
	StatusStale Status = "stale"

	// StatusFetching means a fetch for this key is in flight.
	StatusFetching Status = "fetching"
)

// Fetcher loads the authoritative value for a key from the API.
type Fetcher func(ctx context.Context) (any, error)

// Entry is the externally visible view of a cached value.
type Entry struct {
	Key           Key
	Value         any
	Status        Status
	LastFetchedAt time.Time
}

// Snapshot is the non-blocking read envelope handed to the presentation
// layer: current data (possibly stale), whether a fetch is in flight, and
// the last fetch error if the most recent attempt failed.
type Snapshot struct {
	Data      any
	IsLoading bool
	Err       error
}

type entry struct {
	key         Key
	value       any
	hasValue    bool
	status      Status
	lastFetched time.Time
	lastErr     error

	// gen increments on every invalidation, set, or removal touching this
	// key. A fetch captures gen at start and applies its result only if
	// the generation is unchanged at completion.
	gen uint64
}

// Cache is the process-wide entity cache. Safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*entry
	group   singleflight.Group
	logger  *slog.Logger
}

// New creates an empty cache.
func New(logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		entries: make(map[string]*entry),
		logger:  logger,
	}
}

// Get returns the cached value for key, fetching it first when the key is
// missing or stale. Concurrent calls for the same key while a fetch is in
// flight share the pending result rather than issuing redundant calls.
//
// On fetch failure the entry keeps its previous state (a stale value stays
// readable) and the error is returned to the caller, never stored as the
// entry's value.
func (c *Cache) Get(ctx context.Context, key Key, fetch Fetcher) (any, error) {
	ks := key.String()

	c.mu.Lock()
	if e, ok := c.entries[ks]; ok && e.status == StatusFresh {
		v := e.value
		c.mu.Unlock()
		return v, nil
	}
	c.mu.Unlock()

	v, err, _ := c.group.Do(ks, func() (any, error) {
		return c.fetchAndApply(ctx, key, ks, fetch)
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

// fetchAndApply runs inside a singleflight call: it marks the entry as
// fetching, runs the fetch, and applies the result unless the key's
// generation moved underneath it.
func (c *Cache) fetchAndApply(ctx context.Context, key Key, ks string, fetch Fetcher) (any, error) {
	c.mu.Lock()
	e, ok := c.entries[ks]
	if !ok {
		e = &entry{key: key}
		c.entries[ks] = e
	}
	if e.status == StatusFresh {
		// Another flight refreshed the key between our miss and now.
		v := e.value
		c.mu.Unlock()
		return v, nil
	}
	gen := e.gen
	prevStatus := e.status
	hadValue := e.hasValue
	e.status = StatusFetching
	c.mu.Unlock()

	value, err := fetch(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()

	cur, ok := c.entries[ks]
	if !ok || cur.gen != gen {
		// Superseded by a newer invalidation, set, or removal for this key.
		// The caller still gets the response; the cache keeps fresher intent.
		c.logger.Debug("dropping stale-generation fetch result", "key", ks)
		return value, err
	}

	if err != nil {
		// Keep the previous entry readable; surface the error to callers.
		cur.lastErr = err
		if hadValue {
			cur.status = prevStatus
		} else {
			// Never cached anything for this key; stay a miss.
			delete(c.entries, ks)
		}
		return nil, err
	}

	cur.value = value
	cur.hasValue = true
	cur.status = StatusFresh
	cur.lastFetched = time.Now()
	cur.lastErr = nil
	return value, nil
}

// Set stores value under key as fresh server-confirmed state, superseding
// any fetch currently in flight for the same key.
func (c *Cache) Set(key Key, value any) {
	ks := key.String()

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[ks]
	if !ok {
		e = &entry{key: key}
		c.entries[ks] = e
	}
	e.gen++
	e.value = value
	e.hasValue = true
	e.status = StatusFresh
	e.lastFetched = time.Now()
	e.lastErr = nil
	c.group.Forget(ks)
}

// Invalidate marks every entry whose key begins with prefix as stale and
// supersedes their in-flight fetches, so the next read of each refetches.
// Invalidating a key that was never cached is a no-op: the key is already
// a miss and will fetch on first read.
func (c *Cache) Invalidate(prefix Key) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for ks, e := range c.entries {
		if !e.key.HasPrefix(prefix) {
			continue
		}
		e.gen++
		if e.hasValue {
			e.status = StatusStale
		}
		c.group.Forget(ks)
		c.logger.Debug("invalidated cache key", "key", ks)
	}
}

// Remove deletes the entry for key. Used only on explicit delete-success;
// there is no size-based eviction.
func (c *Cache) Remove(key Key) {
	ks := key.String()

	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, ks)
	c.group.Forget(ks)
}

// Lookup returns the current entry for key without triggering a fetch.
func (c *Cache) Lookup(key Key) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key.String()]
	if !ok || !e.hasValue {
		return Entry{}, false
	}
	return Entry{
		Key:           e.key,
		Value:         e.value,
		Status:        e.status,
		LastFetchedAt: e.lastFetched,
	}, true
}

// Snapshot returns the non-blocking read envelope for key.
func (c *Cache) Snapshot(key Key) Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key.String()]
	if !ok {
		return Snapshot{}
	}
	s := Snapshot{
		IsLoading: e.status == StatusFetching,
		Err:       e.lastErr,
	}
	if e.hasValue {
		s.Data = e.value
	}
	return s
}
