package fetchcache

import (
	"sort"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// DefaultMaxCacheSize bounds the number of cached fingerprints.
const DefaultMaxCacheSize = 100

// CacheStore is a bounded TTL store of successful GET results keyed by
// fingerprint. Entries are replaced, never mutated. Expired entries are
// dropped on the next write pass rather than on read.
type CacheStore struct {
	mu        sync.Mutex
	items     *gocache.Cache
	maxSize   int
	now       func() time.Time
	insertSeq uint64
}

// CacheStoreOption configures a CacheStore.
type CacheStoreOption func(*cacheStoreConfig)

type cacheStoreConfig struct {
	janitor time.Duration
	now     func() time.Time
}

// WithStoreJanitor starts a background sweep of expired entries every
// interval. Without it expired entries are only removed by Evict.
func WithStoreJanitor(interval time.Duration) CacheStoreOption {
	return func(c *cacheStoreConfig) {
		c.janitor = interval
	}
}

// WithStoreClock replaces time.Now for TTL checks.
func WithStoreClock(now func() time.Time) CacheStoreOption {
	return func(c *cacheStoreConfig) {
		c.now = now
	}
}

// NewCacheStore creates a store holding at most maxSize entries after each
// eviction pass. A non-positive maxSize uses DefaultMaxCacheSize.
func NewCacheStore(maxSize int, opts ...CacheStoreOption) *CacheStore {
	cfg := cacheStoreConfig{now: time.Now}
	for _, opt := range opts {
		opt(&cfg)
	}
	if maxSize <= 0 {
		maxSize = DefaultMaxCacheSize
	}

	return &CacheStore{
		items:   gocache.New(gocache.NoExpiration, cfg.janitor),
		maxSize: maxSize,
		now:     cfg.now,
	}
}

// Get returns the entry for key if it is still within its TTL.
func (s *CacheStore) Get(key string) (*CacheEntry, bool) {
	v, ok := s.items.Get(key)
	if !ok {
		return nil, false
	}
	entry := v.(*CacheEntry)
	if !s.fresh(entry, s.now()) {
		return nil, false
	}
	return entry, true
}

// Put stores entry under key, replacing any previous entry, then runs an
// eviction pass.
func (s *CacheStore) Put(key string, entry *CacheEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.putLocked(key, entry)
	s.evictLocked()
}

// PutIfNewer stores entry unless the entry already under key came from a
// call issued later. It reports whether entry was stored.
func (s *CacheStore) PutIfNewer(key string, entry *CacheEntry) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok := s.items.Get(key); ok {
		if existing := v.(*CacheEntry); existing.issueSeq > entry.issueSeq {
			return false
		}
	}

	s.putLocked(key, entry)
	s.evictLocked()
	return true
}

func (s *CacheStore) putLocked(key string, entry *CacheEntry) {
	s.insertSeq++
	entry.insertSeq = s.insertSeq
	if entry.StoredAt.IsZero() {
		entry.StoredAt = s.now()
	}

	// go-cache also expires the item on wall-clock time so the janitor, when
	// enabled, can reclaim it.
	expiration := entry.TTL
	if expiration <= 0 {
		expiration = time.Nanosecond
	}
	s.items.Set(key, entry, expiration)
}

// Delete removes key.
func (s *CacheStore) Delete(key string) {
	s.items.Delete(key)
}

// Evict drops expired entries, then the oldest entries until the store is
// within its bound. It returns how many entries were removed.
func (s *CacheStore) Evict() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.evictLocked()
}

func (s *CacheStore) evictLocked() int {
	before := s.items.ItemCount()
	s.items.DeleteExpired()

	now := s.now()
	type aged struct {
		key   string
		entry *CacheEntry
	}
	live := make([]aged, 0, s.items.ItemCount())
	for key, item := range s.items.Items() {
		entry := item.Object.(*CacheEntry)
		if !s.fresh(entry, now) {
			s.items.Delete(key)
			continue
		}
		live = append(live, aged{key: key, entry: entry})
	}

	if excess := len(live) - s.maxSize; excess > 0 {
		sort.Slice(live, func(i, j int) bool {
			a, b := live[i].entry, live[j].entry
			if !a.StoredAt.Equal(b.StoredAt) {
				return a.StoredAt.Before(b.StoredAt)
			}
			return a.insertSeq < b.insertSeq
		})
		for _, victim := range live[:excess] {
			s.items.Delete(victim.key)
		}
	}

	return before - s.items.ItemCount()
}

// Clear removes every entry.
func (s *CacheStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items.Flush()
}

// Len returns the number of stored entries, expired or not.
func (s *CacheStore) Len() int {
	return s.items.ItemCount()
}

// MaxSize returns the configured bound.
func (s *CacheStore) MaxSize() int {
	return s.maxSize
}

// Stats returns the size, bound and sorted keys of the store.
func (s *CacheStore) Stats() CacheStats {
	s.mu.Lock()
	items := s.items.Items()
	s.mu.Unlock()

	keys := make([]string, 0, len(items))
	for key := range items {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	return CacheStats{
		Size:    len(keys),
		MaxSize: s.maxSize,
		Keys:    keys,
	}
}

func (s *CacheStore) fresh(entry *CacheEntry, now time.Time) bool {
	return entry.TTL > 0 && now.Sub(entry.StoredAt) < entry.TTL
}
