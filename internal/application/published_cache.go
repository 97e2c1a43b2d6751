package application

import (
	"maps"
	"slices"
	"sync"
	"time"
)

// publishedCache keeps recently read published views so repeated reads skip the repository
// while the schedule stays published. Publish invalidates the conference's entry.
type publishedCache struct {
	mu         sync.RWMutex
	now        func() time.Time
	ttl        time.Duration
	maxEntries int
	entries    map[string]publishedCacheEntry
}

type publishedCacheEntry struct {
	view      ScheduleView
	expiresAt time.Time
}

func newPublishedCache(ttl time.Duration, maxEntries int, now func() time.Time) *publishedCache {
	if ttl <= 0 {
		return nil
	}
	if maxEntries <= 0 {
		maxEntries = 128
	}
	if now == nil {
		now = time.Now
	}
	return &publishedCache{
		now:        now,
		ttl:        ttl,
		maxEntries: maxEntries,
		entries:    make(map[string]publishedCacheEntry),
	}
}

func (c *publishedCache) Get(conferenceID string) (ScheduleView, bool) {
	if c == nil {
		return ScheduleView{}, false
	}
	c.mu.RLock()
	entry, ok := c.entries[conferenceID]
	c.mu.RUnlock()
	if !ok {
		return ScheduleView{}, false
	}
	if c.now().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, conferenceID)
		c.mu.Unlock()
		return ScheduleView{}, false
	}
	return cloneView(entry.view), true
}

func (c *publishedCache) Store(conferenceID string, view ScheduleView) {
	if c == nil {
		return
	}
	cloned := cloneView(view)
	expiry := c.now().Add(c.ttl)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.cleanupLocked()
	if _, exists := c.entries[conferenceID]; !exists && len(c.entries) >= c.maxEntries {
		c.evictOldestLocked()
	}
	c.entries[conferenceID] = publishedCacheEntry{view: cloned, expiresAt: expiry}
}

func (c *publishedCache) Invalidate(conferenceID string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	delete(c.entries, conferenceID)
	c.mu.Unlock()
}

func (c *publishedCache) cleanupLocked() {
	now := c.now()
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
		}
	}
}

func (c *publishedCache) evictOldestLocked() {
	var oldestKey string
	var oldest time.Time
	for key, entry := range c.entries {
		if oldestKey == "" || entry.expiresAt.Before(oldest) {
			oldestKey, oldest = key, entry.expiresAt
		}
	}
	delete(c.entries, oldestKey)
}

func cloneView(view ScheduleView) ScheduleView {
	out := view
	out.Conference.Rooms = slices.Clone(view.Conference.Rooms)
	out.Entries = slices.Clone(view.Entries)
	out.Papers = maps.Clone(view.Papers)
	return out
}
