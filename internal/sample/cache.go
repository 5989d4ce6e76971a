package sample

import (
	"log"
	"sync"
)

const bucketCount = 64

// Loader is the external collaborator that resolves an effect id to raw
// PCM bytes plus its native format. Definition-file lookup and file-system
// loading live outside this package (spec §1 "out of scope").
type Loader interface {
	// Load returns raw PCM data for effectID. ok is false if no metadata
	// exists for the id or loading otherwise fails.
	Load(effectID int32) (data []byte, bytesPerSample int, rateHz uint32, numSamples uint32, ok bool)
}

// RefreshGate is satisfied by the refresh worker; the cache quiesces it
// before mutating any sample that a channel might be reading (spec §4.2
// "Concurrency").
type RefreshGate interface {
	Pause()
	Resume()
}

// Target describes the system's conversion target, queried from the
// AudioSystem on every cache insertion (spec §4.1).
type Target struct {
	UpsampleFactor int  // 1, 2, or 4
	Bit16          bool // widen 8-bit input to 16-bit
}

// Clock supplies the monotonic tick the cache uses for age-based eviction
// and hit bookkeeping (spec §3 "Unify: ... the implementation should use a
// monotonic 64-bit ms counter" — ticks here are the 35Hz tick counter, see
// SPEC_FULL.md §5).
type Clock func() int64

const (
	// PurgeIntervalTicks is the minimum spacing between purge passes (~10s
	// of 35Hz ticks, spec §4.2).
	PurgeIntervalTicks = 350
	// MaxCacheTicks is the age threshold for the age pass (~4 minutes of
	// 35Hz ticks, spec §4.2).
	MaxCacheTicks = 4 * 60 * 35
	// MaxCacheBytes is the default size threshold for the size pass (spec
	// §4.2, "≈4 MiB default").
	MaxCacheBytes = 4 * 1024 * 1024
)

type bucket struct {
	mu    sync.Mutex
	items map[int32]*CacheItem
}

// Cache is the SampleCache of spec §4.2: a 64-bucket open-chained hash by
// effect_id mod 64.
type Cache struct {
	buckets      [bucketCount]*bucket
	loader       Loader
	gate         RefreshGate
	now          Clock
	maxBytes     int
	lastPurgeTk  int64
	onRemove     []func(effectID int32, s *Sample)
	removeMu     sync.Mutex
}

// New creates a SampleCache backed by loader, quiescing gate around
// evictions, with now supplying the current tick.
func New(loader Loader, gate RefreshGate, now Clock) *Cache {
	c := &Cache{
		loader:   loader,
		gate:     gate,
		now:      now,
		maxBytes: MaxCacheBytes,
	}
	for i := range c.buckets {
		c.buckets[i] = &bucket{items: make(map[int32]*CacheItem)}
	}
	return c
}

// SetMaxBytes overrides the default size threshold (tests use this to
// exercise the size pass without allocating megabytes of PCM).
func (c *Cache) SetMaxBytes(n int) {
	c.maxBytes = n
}

// OnSampleRemove subscribes fn to the SampleRemove audience, notified right
// before a sample's bytes are freed so Channels can detach first (spec
// §4.1, §4.2).
func (c *Cache) OnSampleRemove(fn func(effectID int32, s *Sample)) {
	c.removeMu.Lock()
	defer c.removeMu.Unlock()
	c.onRemove = append(c.onRemove, fn)
}

func (c *Cache) notifyRemove(effectID int32, s *Sample) {
	c.removeMu.Lock()
	fns := append([]func(int32, *Sample){}, c.onRemove...)
	c.removeMu.Unlock()
	for _, fn := range fns {
		fn(effectID, s)
	}
}

func (c *Cache) bucketFor(effectID int32) *bucket {
	idx := int(uint32(effectID) % bucketCount)
	return c.buckets[idx]
}

// Cache returns the cached Sample for effectID, loading and converting it
// on first reference. Returns nil if playback is unavailable, the id is
// <= 0, no metadata exists, or loading fails (spec §4.2).
func (c *Cache) Cache(effectID int32, target Target) *Sample {
	if effectID <= 0 || c.loader == nil {
		return nil
	}

	b := c.bucketFor(effectID)
	b.mu.Lock()
	if item, ok := b.items[effectID]; ok {
		b.mu.Unlock()
		return item.Sample
	}
	b.mu.Unlock()

	data, bps, rate, numSamples, ok := c.loader.Load(effectID)
	if !ok || numSamples == 0 {
		return nil
	}

	k := target.UpsampleFactor
	if k != 2 && k != 4 {
		k = 1
	}
	data = Upsample(data, bps, k)
	numSamples *= uint32(k)
	rate *= uint32(k)

	if target.Bit16 && bps == 1 {
		data = Widen8to16(data)
		bps = 2
	}

	s := &Sample{
		EffectID:       effectID,
		BytesPerSample: bps,
		RateHz:         rate,
		NumSamples:     numSamples,
		Data:           data,
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if item, ok := b.items[effectID]; ok {
		// Another goroutine populated it first; keep the pointer already
		// cached so callers comparing pointer identity see one winner.
		return item.Sample
	}
	b.items[effectID] = &CacheItem{Sample: s, LastUsedTick: c.tick()}
	return s
}

// Hit increments the CacheItem's hit counter and refreshes its last-used
// tick (spec §4.2).
func (c *Cache) Hit(effectID int32) {
	b := c.bucketFor(effectID)
	b.mu.Lock()
	defer b.mu.Unlock()
	if item, ok := b.items[effectID]; ok {
		item.Hits++
		item.LastUsedTick = c.tick()
	}
}

func (c *Cache) tick() int64 {
	if c.now == nil {
		return 0
	}
	return c.now()
}

// TotalBytes returns the cache's current total byte footprint.
func (c *Cache) TotalBytes() int {
	total := 0
	for _, b := range c.buckets {
		b.mu.Lock()
		for _, item := range b.items {
			total += item.ByteSize()
		}
		b.mu.Unlock()
	}
	return total
}

// Len returns the number of cached items, across all buckets.
func (c *Cache) Len() int {
	n := 0
	for _, b := range c.buckets {
		b.mu.Lock()
		n += len(b.items)
		b.mu.Unlock()
	}
	return n
}

// IsLoadedFunc reports, for a given effect id, whether any Sound channel
// currently has it loaded and playing. The caller of MaybeRunPurge passes
// this so the size pass never evicts audible samples (spec §4.2); a nil
// func treats every sample as evictable.
type IsLoadedFunc func(effectID int32) bool

// MaybeRunPurge performs the bounded-latency purge described in spec §4.2.
// It is a no-op if less than PurgeIntervalTicks have elapsed since the last
// purge.
func (c *Cache) MaybeRunPurge(isPlaying IsLoadedFunc) {
	now := c.tick()
	if now-c.lastPurgeTk < PurgeIntervalTicks {
		return
	}
	c.lastPurgeTk = now

	c.agePass(now)
	c.sizePass(isPlaying)
}

func (c *Cache) agePass(now int64) {
	for _, b := range c.buckets {
		var stale []int32
		b.mu.Lock()
		for id, item := range b.items {
			if now-item.LastUsedTick > MaxCacheTicks {
				stale = append(stale, id)
			}
		}
		b.mu.Unlock()

		for _, id := range stale {
			b.mu.Lock()
			item, ok := b.items[id]
			b.mu.Unlock()
			if ok {
				c.evict(id, item.Sample)
			}
		}
	}
}

func (c *Cache) sizePass(isPlaying IsLoadedFunc) {
	for c.TotalBytes() > c.maxBytes {
		id, s, found := c.findLowestHitEvictable(isPlaying)
		if !found {
			return
		}
		c.evict(id, s)
	}
}

// findLowestHitEvictable scans all buckets for the item with the lowest
// hit count that no channel currently has loaded and playing. Ties break
// by hash-iteration order (first encountered wins), per spec §4.2 and the
// open question in §9.
func (c *Cache) findLowestHitEvictable(isPlaying IsLoadedFunc) (int32, *Sample, bool) {
	var (
		bestID    int32
		bestItem  *Sample
		bestHits  uint32
		found     bool
	)

	for _, b := range c.buckets {
		b.mu.Lock()
		for id, item := range b.items {
			if isPlaying != nil && isPlaying(id) {
				continue
			}
			if !found || item.Hits < bestHits {
				found = true
				bestID = id
				bestItem = item.Sample
				bestHits = item.Hits
			}
		}
		b.mu.Unlock()
	}

	return bestID, bestItem, found
}

func (c *Cache) evict(effectID int32, s *Sample) {
	if c.gate != nil {
		c.gate.Pause()
		defer c.gate.Resume()
	}

	c.notifyRemove(effectID, s)

	b := c.bucketFor(effectID)
	b.mu.Lock()
	delete(b.items, effectID)
	b.mu.Unlock()
}

// Clear removes everything from the cache (spec §4.2 "clear()").
func (c *Cache) Clear() {
	if c.gate != nil {
		c.gate.Pause()
		defer c.gate.Resume()
	}

	for _, b := range c.buckets {
		b.mu.Lock()
		for id, item := range b.items {
			c.notifyRemove(id, item.Sample)
		}
		b.items = make(map[int32]*CacheItem)
		b.mu.Unlock()
	}
	log.Printf("sample cache: cleared")
}
