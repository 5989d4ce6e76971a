// Package stage implements the logical collection of sounds currently
// requested to play: a Stage holds Sound records keyed by effect id,
// applies the exclusion policy, purges expired sounds on a ticker, and
// notifies an Addition audience for the channel-selection layer to
// consume (spec §4.4). WorldStage is the Stage bound to the game world,
// clearing itself on map change (spec §3 "Stage").
package stage

import (
	"sync"
	"time"

	"audiostage/internal/listener"
	"audiostage/internal/sample"
)

// Exclusion controls how many concurrent sounds an emitter may produce.
type Exclusion int

const (
	// DontExclude allows any number of sounds per emitter.
	DontExclude Exclusion = iota
	// OnePerEmitter stops any sound already playing for the same
	// non-nil emitter before starting a new one (spec §4.4 invariant 3).
	OnePerEmitter
)

// Emitter is the opaque identity of whatever originated a Sound: a
// mobj, a plane, a polyobj — the Stage never inspects it beyond pointer
// identity and position.
type Emitter interface {
	Origin() listener.Vec3
}

// PlayParams describes a play_sound request (spec §4.4).
type PlayParams struct {
	EffectID    int32
	Volume      float64
	FrequencyScale float64
	Flags       listener.SoundFlags
	Repeat      bool
	Group       int32
}

// Sound is the logical, not-yet-assigned-a-channel representation of an
// in-progress sound request (spec §3 "Sound").
type Sound struct {
	EffectID  int32
	Params    PlayParams
	Emitter   Emitter
	StartMs   int64
	EndMs     int64
}

// IsPlayingAt reports whether the sound has not yet reached its end
// tick as of nowMs.
func (s *Sound) IsPlayingAt(nowMs int64) bool {
	return nowMs < s.EndMs
}

// DurationLookup resolves an effect id's cached duration, triggering a
// cache load on first reference (spec §4.4: "ensures the waveform is
// cached to learn its duration").
type DurationLookup interface {
	DurationMs(effectID int32, target sample.Target) (uint32, bool)
}

// Stage holds every in-progress Sound, keyed by effect id, plus the
// embedded Listener every sound's priority is rated against (spec §3
// "Stage").
type Stage struct {
	mu        sync.Mutex
	sounds    map[int32][]*Sound
	exclusion Exclusion

	*listener.Listener

	durations DurationLookup
	target    sample.Target
	nowMs     func() int64

	lastPurgeMs int64
	stopChan    chan struct{}
	stopped     bool

	onAddition []func(*Sound)
}

// PurgeInterval bounds the latency of the background purge loop (spec
// §4.4: "at least every 2 seconds").
const PurgeInterval = 2 * time.Second

// New creates a Stage with the given exclusion policy, attenuation
// range, duration lookup, conversion target, and monotonic clock.
func New(excl Exclusion, near, far float64, durations DurationLookup, target sample.Target, nowMs func() int64) *Stage {
	return &Stage{
		sounds:    make(map[int32][]*Sound),
		exclusion: excl,
		Listener:  listener.New(near, far),
		durations: durations,
		target:    target,
		nowMs:     nowMs,
		stopChan:  make(chan struct{}),
	}
}

// OnAddition subscribes fn to the Addition audience, fired exactly once
// per successful PlaySound call (spec §4.4).
func (s *Stage) OnAddition(fn func(*Sound)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onAddition = append(s.onAddition, fn)
}

func (s *Stage) notifyAddition(snd *Sound) {
	s.mu.Lock()
	fns := append([]func(*Sound){}, s.onAddition...)
	s.mu.Unlock()
	for _, fn := range fns {
		fn(snd)
	}
}

// PlaySound inserts a new logical Sound, applying the exclusion policy
// first and skipping zero-duration waveforms entirely (spec §4.4).
// Returns the created Sound, or nil if the sound was rejected (unknown
// effect id or zero duration).
func (s *Stage) PlaySound(p PlayParams, emitter Emitter) *Sound {
	if s.durations == nil {
		return nil
	}
	durMs, ok := s.durations.DurationMs(p.EffectID, s.target)
	if !ok || durMs == 0 {
		return nil
	}

	now := s.now()

	s.mu.Lock()
	if s.exclusion == OnePerEmitter && emitter != nil {
		s.stopByEmitterLocked(emitter, now)
	}
	end := now + int64(durMs)
	if p.Repeat {
		end = now + 1
	}
	snd := &Sound{
		EffectID: p.EffectID,
		Params:   p,
		Emitter:  emitter,
		StartMs:  now,
		EndMs:    end,
	}
	s.sounds[p.EffectID] = append(s.sounds[p.EffectID], snd)
	s.mu.Unlock()

	s.notifyAddition(snd)
	return snd
}

// stopByEmitterLocked removes (without eviction notification) any sound
// already in flight for the same emitter. Caller must hold s.mu.
func (s *Stage) stopByEmitterLocked(emitter Emitter, now int64) {
	for id, list := range s.sounds {
		kept := list[:0]
		for _, snd := range list {
			if snd.Emitter == emitter && snd.IsPlayingAt(now) {
				continue
			}
			kept = append(kept, snd)
		}
		s.sounds[id] = kept
	}
}

// SoundIsPlaying reports whether effectID (optionally restricted to
// emitter, when non-nil) has any in-progress sound (spec §4.4).
func (s *Stage) SoundIsPlaying(effectID int32, emitter Emitter) bool {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, snd := range s.sounds[effectID] {
		if !snd.IsPlayingAt(now) {
			continue
		}
		if emitter == nil || snd.Emitter == emitter {
			return true
		}
	}
	return false
}

// RemoveAllSounds clears every in-progress sound, e.g. on a map change
// (spec §4.4).
func (s *Stage) RemoveAllSounds() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sounds = make(map[int32][]*Sound)
}

// RemoveSoundsByID removes every in-progress sound for effectID.
func (s *Stage) RemoveSoundsByID(effectID int32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sounds, effectID)
}

// RemoveSoundsWithEmitter removes every in-progress sound originating
// from emitter, across all effect ids.
func (s *Stage) RemoveSoundsWithEmitter(emitter Emitter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, list := range s.sounds {
		kept := list[:0]
		for _, snd := range list {
			if snd.Emitter != emitter {
				kept = append(kept, snd)
			}
		}
		s.sounds[id] = kept
	}
}

// MaybeRunSoundPurge drops sounds whose end tick has passed, at most
// once per PurgeInterval (spec §4.4).
func (s *Stage) MaybeRunSoundPurge() {
	now := s.now()

	s.mu.Lock()
	if time.Duration(now-s.lastPurgeMs)*time.Millisecond < PurgeInterval {
		s.mu.Unlock()
		return
	}
	s.lastPurgeMs = now

	for id, list := range s.sounds {
		kept := list[:0]
		for _, snd := range list {
			if snd.IsPlayingAt(now) {
				kept = append(kept, snd)
			}
		}
		if len(kept) == 0 {
			delete(s.sounds, id)
		} else {
			s.sounds[id] = kept
		}
	}
	s.mu.Unlock()
}

func (s *Stage) now() int64 {
	if s.nowMs == nil {
		return 0
	}
	return s.nowMs()
}

// Start runs the background purge loop until Stop is called (grounded
// in the ticker+stopChan shape used elsewhere in this codebase for
// periodic background work).
func (s *Stage) Start() {
	go func() {
		ticker := time.NewTicker(PurgeInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.MaybeRunSoundPurge()
			case <-s.stopChan:
				return
			}
		}
	}()
}

// Stop ends the background purge loop. Idempotent.
func (s *Stage) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.stopped = true
	close(s.stopChan)
}
