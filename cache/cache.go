package cache

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/use-agent/peel/models"
)

// entry holds a cached result alongside its LRU list element and byte cost.
type entry struct {
	key       string
	result    *models.PeelResult
	createdAt time.Time
	size      int64
	elem      *list.Element
}

// Cache is a byte- and entry-capped LRU cache for fetch results. It is safe
// for concurrent use. Unlike a plain capacity check, eviction always removes
// the least-recently-used entry, never a random one.
type Cache struct {
	mu         sync.Mutex
	store      map[string]*entry
	order      *list.List // front = most recently used
	maxEntries int
	maxBytes   int64
	curBytes   int64
	ttl        time.Duration
	stop       chan struct{}
}

// New creates a Cache capped at maxEntries entries and maxBytes of content
// (0 disables the byte cap). A background goroutine evicts entries older
// than ttl every five minutes.
func New(maxEntries int, maxBytes int64, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	c := &Cache{
		store:      make(map[string]*entry),
		order:      list.New(),
		maxEntries: maxEntries,
		maxBytes:   maxBytes,
		ttl:        ttl,
		stop:       make(chan struct{}),
	}
	go c.cleanupLoop()
	return c
}

// Key generates a cache key from the URL, output format, and extract mode.
func Key(url, format, mode string) string {
	h := sha256.New()
	h.Write([]byte(url))
	h.Write([]byte("|"))
	h.Write([]byte(format))
	h.Write([]byte("|"))
	h.Write([]byte(mode))
	return hex.EncodeToString(h.Sum(nil))
}

// Get retrieves a cached result if it exists and is younger than maxAge.
// maxAge is in milliseconds; maxAge <= 0 skips the lookup entirely. A hit
// promotes the entry to most-recently-used.
func (c *Cache) Get(key string, maxAgeMs int) (*models.PeelResult, bool) {
	if maxAgeMs <= 0 {
		return nil, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.store[key]
	if !ok {
		return nil, false
	}

	maxAge := time.Duration(maxAgeMs) * time.Millisecond
	if time.Since(e.createdAt) > maxAge {
		return nil, false
	}

	c.order.MoveToFront(e.elem)
	return e.result, true
}

// Set stores a result, evicting least-recently-used entries until both the
// entry-count and byte-size caps are satisfied.
func (c *Cache) Set(key string, result *models.PeelResult) {
	size := int64(len(result.Content))

	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.store[key]; ok {
		c.order.Remove(old.elem)
		c.curBytes -= old.size
		delete(c.store, key)
	}

	e := &entry{key: key, result: result, createdAt: time.Now(), size: size}
	e.elem = c.order.PushFront(e)
	c.store[key] = e
	c.curBytes += size

	c.evictLocked()
}

func (c *Cache) evictLocked() {
	for len(c.store) > c.maxEntries || (c.maxBytes > 0 && c.curBytes > c.maxBytes) {
		back := c.order.Back()
		if back == nil {
			return
		}
		victim := back.Value.(*entry)
		c.order.Remove(back)
		delete(c.store, victim.key)
		c.curBytes -= victim.size
	}
}

// Len reports the current number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.store)
}

// Stop halts the background cleanup goroutine.
func (c *Cache) Stop() {
	close(c.stop)
}

func (c *Cache) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-c.ttl)
			c.mu.Lock()
			for k, e := range c.store {
				if e.createdAt.Before(cutoff) {
					c.order.Remove(e.elem)
					c.curBytes -= e.size
					delete(c.store, k)
				}
			}
			c.mu.Unlock()
		}
	}
}
