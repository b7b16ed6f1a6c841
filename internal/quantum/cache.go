// Package quantum manages the pre-loaded quantum randomness pool that the
// timing engine draws topological phases from. Seeds are derived up front so
// the hot path never blocks on an entropy source.
package quantum

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// SeedSize is the byte length of a single pooled seed.
const SeedSize = sha256.Size

// DefaultPoolSize is the number of seeds preloaded when no size is configured.
const DefaultPoolSize = 4096

// Stats reports pool usage counters.
type Stats struct {
	Hits   uint64
	Misses uint64
	Size   int
}

// HitRate returns the fraction of draws served from the pool.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Cache is the quantum randomness pool. Draws cycle through the pool
// round-robin; an empty pool serves a fixed fallback value and records a
// miss so health checks can surface the degradation.
type Cache struct {
	mu     sync.Mutex
	seeds  [][]byte
	next   int
	hits   uint64
	misses uint64
	logger *zap.Logger
}

// NewCache returns an empty cache. Call Preload before use; an unloaded
// cache degrades to the fallback value rather than failing.
func NewCache(logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{logger: logger}
}

// Preload fills the pool with count seeds derived from the named source.
// The derivation is a deterministic SHA-256 chain over the source label, so
// a given source always yields the same pool.
func (c *Cache) Preload(ctx context.Context, source string, count int) error {
	if count <= 0 {
		return fmt.Errorf("seed count must be positive, got %d", count)
	}

	c.logger.Info("preloading quantum seeds",
		zap.String("source", source),
		zap.Int("count", count))

	seeds := make([][]byte, 0, count)
	for i := 0; i < count; i++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("preload interrupted after %d seeds: %w", i, err)
		}
		sum := sha256.Sum256([]byte(fmt.Sprintf("%s/%d", source, i)))
		seeds = append(seeds, sum[:])
	}

	c.mu.Lock()
	c.seeds = seeds
	c.next = 0
	c.mu.Unlock()

	c.logger.Info("quantum cache preloaded", zap.Int("seeds", count))
	return nil
}

// Random returns a value in [0, 1) drawn from the pool. An empty pool
// returns 0.5 and counts a miss.
func (c *Cache) Random() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.seeds) == 0 {
		c.misses++
		return 0.5
	}

	c.hits++
	seed := c.seeds[c.next%len(c.seeds)]
	c.next++

	// Top 53 bits give a uniform float in [0, 1), same construction as
	// math/rand.Float64.
	v := binary.BigEndian.Uint64(seed[:8])
	return float64(v>>11) / (1 << 53)
}

// Amplitude returns a complex amplitude with both components in [-1, 1).
func (c *Cache) Amplitude() complex128 {
	re := c.Random()*2 - 1
	im := c.Random()*2 - 1
	return complex(re, im)
}

// Loaded reports whether the pool holds any seeds.
func (c *Cache) Loaded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seeds) > 0
}

// Stats returns a snapshot of the usage counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{Hits: c.hits, Misses: c.misses, Size: len(c.seeds)}
}
