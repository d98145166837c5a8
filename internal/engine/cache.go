// Atelier - Infinite Artwork Canvas and Similarity Explorer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

package engine

import (
	"time"

	"github.com/tomtom215/atelier/internal/metrics"
	"github.com/tomtom215/atelier/internal/models"
)

// cacheEntry is a node in the chunk cache's doubly-linked list.
type cacheEntry struct {
	key    string
	record *models.ChunkRecord
	prev   *cacheEntry
	next   *cacheEntry
}

// chunkCache is an LRU cache of chunk records with O(1) get, put, and
// eviction, using a doubly-linked list for ordering and a map for lookup.
//
// It is owned exclusively by the engine's command loop and is therefore
// unsynchronized. Records are never mutated in place once ready; replacing
// a chunk's content means removing the old record and putting a fresh one.
type chunkCache struct {
	capacity int
	items    map[string]*cacheEntry

	// head.next is most recently used, tail.prev is least recently used.
	head *cacheEntry
	tail *cacheEntry
}

func newChunkCache(capacity int) *chunkCache {
	c := &chunkCache{
		capacity: capacity,
		items:    make(map[string]*cacheEntry, capacity),
		head:     &cacheEntry{},
		tail:     &cacheEntry{},
	}
	c.head.next = c.tail
	c.tail.prev = c.head
	return c
}

// get returns the record for key and marks it recently used.
func (c *chunkCache) get(key string) *models.ChunkRecord {
	entry, ok := c.items[key]
	if !ok {
		metrics.ChunkCacheMisses.Inc()
		return nil
	}
	metrics.ChunkCacheHits.Inc()
	entry.record.LastAccessed = time.Now()
	c.moveToFront(entry)
	return entry.record
}

// peek returns the record without touching access order or counters.
func (c *chunkCache) peek(key string) *models.ChunkRecord {
	if entry, ok := c.items[key]; ok {
		return entry.record
	}
	return nil
}

// put inserts or replaces the record for key and marks it recently used.
// Capacity enforcement is the engine's job via evictOver, because eviction
// must consult the visible set the cache knows nothing about.
func (c *chunkCache) put(key string, record *models.ChunkRecord) {
	record.LastAccessed = time.Now()
	if entry, ok := c.items[key]; ok {
		entry.record = record
		c.moveToFront(entry)
		return
	}
	entry := &cacheEntry{key: key, record: record}
	c.items[key] = entry
	c.addToFront(entry)
	metrics.ChunkCacheSize.Set(float64(len(c.items)))
}

// remove deletes the record for key if present.
func (c *chunkCache) remove(key string) {
	if entry, ok := c.items[key]; ok {
		c.unlink(entry)
		delete(c.items, key)
		metrics.ChunkCacheSize.Set(float64(len(c.items)))
	}
}

// clear drops every record.
func (c *chunkCache) clear() {
	c.items = make(map[string]*cacheEntry, c.capacity)
	c.head.next = c.tail
	c.tail.prev = c.head
	metrics.ChunkCacheSize.Set(0)
}

func (c *chunkCache) len() int { return len(c.items) }

// evictOver removes least-recently-used records until the cache is at
// capacity, skipping protected keys. Protected records (the visible set
// and in-flight loads) are never evicted even when the cache stays over
// capacity as a result.
func (c *chunkCache) evictOver(protected map[string]struct{}) {
	entry := c.tail.prev
	for len(c.items) > c.capacity && entry != c.head {
		prev := entry.prev
		if _, keep := protected[entry.key]; !keep {
			c.unlink(entry)
			delete(c.items, entry.key)
			metrics.ChunkCacheEvictions.Inc()
		}
		entry = prev
	}
	metrics.ChunkCacheSize.Set(float64(len(c.items)))
}

// keys returns all cached keys in no particular order.
func (c *chunkCache) keys() []string {
	out := make([]string, 0, len(c.items))
	for k := range c.items {
		out = append(out, k)
	}
	return out
}

// findArtwork scans ready records for an artwork by identity. Used to
// resolve the focal artwork from whatever chunk it was clicked in.
func (c *chunkCache) findArtwork(id string) *models.Artwork {
	for _, entry := range c.items {
		if entry.record.State != models.ChunkStateReady {
			continue
		}
		for i := range entry.record.Items {
			if entry.record.Items[i].ID == id {
				return &entry.record.Items[i].Artwork
			}
		}
	}
	return nil
}

func (c *chunkCache) moveToFront(entry *cacheEntry) {
	c.unlink(entry)
	c.addToFront(entry)
}

func (c *chunkCache) addToFront(entry *cacheEntry) {
	entry.prev = c.head
	entry.next = c.head.next
	c.head.next.prev = entry
	c.head.next = entry
}

func (c *chunkCache) unlink(entry *cacheEntry) {
	entry.prev.next = entry.next
	entry.next.prev = entry.prev
}
