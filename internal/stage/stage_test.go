package stage

import (
	"testing"

	"audiostage/internal/listener"
	"audiostage/internal/sample"
)

type fakeDurations struct {
	durations map[int32]uint32
}

func (f *fakeDurations) DurationMs(effectID int32, target sample.Target) (uint32, bool) {
	d, ok := f.durations[effectID]
	return d, ok
}

type fakeEmitter struct {
	pos listener.Vec3
}

func (f *fakeEmitter) Origin() listener.Vec3 { return f.pos }

func newTestStage(excl Exclusion, durations map[int32]uint32, clock *int64) *Stage {
	return New(excl, 0, 1000, &fakeDurations{durations: durations}, sample.Target{}, func() int64 { return *clock })
}

func TestPlaySoundRejectsUnknownEffect(t *testing.T) {
	clock := int64(0)
	s := newTestStage(DontExclude, map[int32]uint32{}, &clock)
	if snd := s.PlaySound(PlayParams{EffectID: 1}, nil); snd != nil {
		t.Error("expected nil for unknown effect id")
	}
}

func TestPlaySoundRejectsZeroDuration(t *testing.T) {
	clock := int64(0)
	s := newTestStage(DontExclude, map[int32]uint32{1: 0}, &clock)
	if snd := s.PlaySound(PlayParams{EffectID: 1}, nil); snd != nil {
		t.Error("expected nil for zero-duration effect")
	}
}

func TestPlaySoundSetsEndTick(t *testing.T) {
	clock := int64(1000)
	s := newTestStage(DontExclude, map[int32]uint32{1: 250}, &clock)
	snd := s.PlaySound(PlayParams{EffectID: 1}, nil)
	if snd == nil {
		t.Fatal("expected sound to be created")
	}
	if snd.EndMs != 1250 {
		t.Errorf("EndMs = %d, want 1250", snd.EndMs)
	}
}

func TestPlaySoundRepeatEndsNextTick(t *testing.T) {
	clock := int64(1000)
	s := newTestStage(DontExclude, map[int32]uint32{1: 250}, &clock)
	snd := s.PlaySound(PlayParams{EffectID: 1, Repeat: true}, nil)
	if snd.EndMs != 1001 {
		t.Errorf("EndMs = %d, want 1001 for repeating sound", snd.EndMs)
	}
}

func TestPlaySoundNotifiesAdditionExactlyOnce(t *testing.T) {
	clock := int64(0)
	s := newTestStage(DontExclude, map[int32]uint32{1: 250}, &clock)
	calls := 0
	s.OnAddition(func(*Sound) { calls++ })
	s.PlaySound(PlayParams{EffectID: 1}, nil)
	if calls != 1 {
		t.Errorf("Addition notifications = %d, want 1", calls)
	}
}

func TestOnePerEmitterStopsPriorSound(t *testing.T) {
	clock := int64(0)
	s := newTestStage(OnePerEmitter, map[int32]uint32{1: 500, 2: 500}, &clock)
	emitter := &fakeEmitter{}

	s.PlaySound(PlayParams{EffectID: 1}, emitter)
	s.PlaySound(PlayParams{EffectID: 2}, emitter)

	if s.SoundIsPlaying(1, emitter) {
		t.Error("expected first sound stopped by OnePerEmitter policy")
	}
	if !s.SoundIsPlaying(2, emitter) {
		t.Error("expected second sound still playing")
	}
}

func TestDontExcludeAllowsMultipleSoundsPerEmitter(t *testing.T) {
	clock := int64(0)
	s := newTestStage(DontExclude, map[int32]uint32{1: 500, 2: 500}, &clock)
	emitter := &fakeEmitter{}

	s.PlaySound(PlayParams{EffectID: 1}, emitter)
	s.PlaySound(PlayParams{EffectID: 2}, emitter)

	if !s.SoundIsPlaying(1, emitter) || !s.SoundIsPlaying(2, emitter) {
		t.Error("expected both sounds to remain playing without exclusion")
	}
}

func TestSoundIsPlayingRespectsEndTick(t *testing.T) {
	clock := int64(0)
	s := newTestStage(DontExclude, map[int32]uint32{1: 100}, &clock)
	s.PlaySound(PlayParams{EffectID: 1}, nil)

	if !s.SoundIsPlaying(1, nil) {
		t.Error("expected sound playing immediately after start")
	}
	clock = 150
	if s.SoundIsPlaying(1, nil) {
		t.Error("expected sound to have expired past its end tick")
	}
}

func TestRemoveAllSounds(t *testing.T) {
	clock := int64(0)
	s := newTestStage(DontExclude, map[int32]uint32{1: 500}, &clock)
	s.PlaySound(PlayParams{EffectID: 1}, nil)
	s.RemoveAllSounds()
	if s.SoundIsPlaying(1, nil) {
		t.Error("expected no sounds after RemoveAllSounds")
	}
}

func TestRemoveSoundsByID(t *testing.T) {
	clock := int64(0)
	s := newTestStage(DontExclude, map[int32]uint32{1: 500, 2: 500}, &clock)
	s.PlaySound(PlayParams{EffectID: 1}, nil)
	s.PlaySound(PlayParams{EffectID: 2}, nil)

	s.RemoveSoundsByID(1)
	if s.SoundIsPlaying(1, nil) {
		t.Error("expected effect 1 removed")
	}
	if !s.SoundIsPlaying(2, nil) {
		t.Error("expected effect 2 untouched")
	}
}

func TestRemoveSoundsWithEmitter(t *testing.T) {
	clock := int64(0)
	s := newTestStage(DontExclude, map[int32]uint32{1: 500}, &clock)
	e1, e2 := &fakeEmitter{}, &fakeEmitter{}
	s.PlaySound(PlayParams{EffectID: 1}, e1)
	s.PlaySound(PlayParams{EffectID: 1}, e2)

	s.RemoveSoundsWithEmitter(e1)
	if s.SoundIsPlaying(1, e1) {
		t.Error("expected e1's sound removed")
	}
	if !s.SoundIsPlaying(1, e2) {
		t.Error("expected e2's sound untouched")
	}
}

func TestMaybeRunSoundPurgeDropsExpired(t *testing.T) {
	clock := int64(0)
	s := newTestStage(DontExclude, map[int32]uint32{1: 100}, &clock)
	s.PlaySound(PlayParams{EffectID: 1}, nil)

	clock = int64(3000) // past PurgeInterval and past end tick
	s.MaybeRunSoundPurge()

	s.mu.Lock()
	n := len(s.sounds[1])
	s.mu.Unlock()
	if n != 0 {
		t.Errorf("len(sounds[1]) = %d, want 0 after purge", n)
	}
}
