package audiosystem

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// EffectBurstsPerSec bounds how often a single effect id may be
// (re)triggered (burst of EffectBurstsPerSec/3); a looping low-health alarm
// or a badly tuned particle emitter should not be able to flood channel
// selection. EffectBurstWindow is how often idle limiters are reclaimed and
// how long an effect id must go unused before its limiter is dropped
// (grounded on this codebase's per-player event-log limiter).
const (
	EffectBurstsPerSec = 30
	EffectBurstWindow  = 10 * time.Minute
)

type effectLimiterEntry struct {
	limiter  *rate.Limiter
	lastUsed time.Time
}

// PerEffectLimiter rate-limits Addition notifications per effect id,
// reclaiming limiters for effect ids that have gone quiet.
type PerEffectLimiter struct {
	limiters sync.Map // map[int32]*effectLimiterEntry
	stopChan chan struct{}
}

// NewPerEffectLimiter creates a limiter and starts its cleanup loop.
func NewPerEffectLimiter() *PerEffectLimiter {
	l := &PerEffectLimiter{stopChan: make(chan struct{})}
	go l.cleanupLoop()
	return l
}

// Allow reports whether effectID may trigger another channel-selection
// pass right now.
func (l *PerEffectLimiter) Allow(effectID int32) bool {
	return l.get(effectID).Allow()
}

func (l *PerEffectLimiter) get(effectID int32) *rate.Limiter {
	if v, ok := l.limiters.Load(effectID); ok {
		entry := v.(*effectLimiterEntry)
		entry.lastUsed = time.Now()
		return entry.limiter
	}
	entry := &effectLimiterEntry{
		limiter:  rate.NewLimiter(rate.Limit(EffectBurstsPerSec), EffectBurstsPerSec/3),
		lastUsed: time.Now(),
	}
	actual, _ := l.limiters.LoadOrStore(effectID, entry)
	return actual.(*effectLimiterEntry).limiter
}

func (l *PerEffectLimiter) cleanupLoop() {
	ticker := time.NewTicker(EffectBurstWindow)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.cleanup()
		case <-l.stopChan:
			return
		}
	}
}

func (l *PerEffectLimiter) cleanup() {
	now := time.Now()
	l.limiters.Range(func(key, value interface{}) bool {
		entry := value.(*effectLimiterEntry)
		if now.Sub(entry.lastUsed) > EffectBurstWindow {
			l.limiters.Delete(key)
		}
		return true
	})
}

// Stop ends the cleanup loop.
func (l *PerEffectLimiter) Stop() {
	close(l.stopChan)
}
