// Package sample implements the waveform cache: content-addressed,
// hit-counted, size-bounded PCM storage with format conversion on insertion
// and eviction coordinated with active playback (spec §4.1-§4.2).
package sample

// Sample owns a block of converted PCM bytes plus its format.
//
// Invariant: len(Data) == int(NumSamples) * BytesPerSample.
type Sample struct {
	EffectID       int32
	Group          int32
	BytesPerSample int // 1 or 2
	RateHz         uint32
	NumSamples     uint32
	Data           []byte
}

// DurationMs returns the sample's playback duration in milliseconds.
func (s *Sample) DurationMs() uint32 {
	if s == nil || s.RateHz == 0 {
		return 0
	}
	return uint32(uint64(s.NumSamples) * 1000 / uint64(s.RateHz))
}

// CacheItem wraps a cached Sample with the bookkeeping the eviction policy
// needs: hit count and last-used tick.
type CacheItem struct {
	Sample       *Sample
	Hits         uint32
	LastUsedTick int64
}

// ByteSize returns the number of bytes this item contributes to the cache's
// total footprint.
func (c *CacheItem) ByteSize() int {
	if c == nil || c.Sample == nil {
		return 0
	}
	return len(c.Sample.Data)
}
