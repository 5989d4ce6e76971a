// Package audiosystem composes the Stage, SampleCache, Mixer, Driver
// registry, and Refresh worker into the engine-facing audio subsystem,
// and implements the channel-selection algorithm that turns a Stage
// Addition event into a playing Channel (spec §4.7).
package audiosystem

import (
	"log"
	"math/rand"
	"sync"

	"audiostage/internal/channel"
	"audiostage/internal/config"
	"audiostage/internal/driver"
	"audiostage/internal/listener"
	"audiostage/internal/mixer"
	"audiostage/internal/refresh"
	"audiostage/internal/sample"
	"audiostage/internal/stage"
)

// System is the top-level audio subsystem (spec §3 "AudioSystem").
type System struct {
	mu sync.Mutex

	cvars config.CVars
	busy  bool
	noRandomPitch bool

	cache      *sample.Cache
	mixer      *mixer.Mixer
	drivers    *driver.Registry
	worker     *refresh.Worker
	worldL     *listener.Listener
	defs       Definitions
	limiter    *PerEffectLimiter
	sfxTrack    *mixer.Track
	activeSFX   driver.Driver
	activeMusic *driver.BeepDriver
	channelCap  int
	clock       func() int64
}

// Deps bundles the collaborators System composes. WorldListener is the
// single canonical Listener every sound's priority is rated against,
// even for local (non-world) stages (spec §4.7 step 7).
type Deps struct {
	Cache        *sample.Cache
	Mixer        *mixer.Mixer
	Drivers      *driver.Registry
	WorldListener *listener.Listener
	Definitions  Definitions
	ChannelCap   int // max concurrent sfx channels, spec §6 -sfxchan
	Clock        func() int64 // monotonic ms clock driving refresh expiry
}

// New creates a System wired to its collaborators, using cvars for
// volume/format/3D gating.
func New(cvars config.CVars, deps Deps) *System {
	if deps.Definitions == nil {
		deps.Definitions = StaticDefinitions{}
	}
	if deps.Clock == nil {
		deps.Clock = func() int64 { return 0 }
	}
	s := &System{
		cvars:      cvars,
		cache:      deps.Cache,
		mixer:      deps.Mixer,
		drivers:    deps.Drivers,
		worldL:     deps.WorldListener,
		defs:       deps.Definitions,
		limiter:    NewPerEffectLimiter(),
		channelCap: deps.ChannelCap,
		clock:      deps.Clock,
	}
	s.sfxTrack = deps.Mixer.MakeTrack("fx", "Sound Effects", nil)
	s.worker = refresh.NewWorker(s.refreshTick, deps.Mixer.HasChannels)
	return s
}

// SetBusyMode toggles the system-wide gate that drops every Addition
// event without selecting a channel (spec §4.7 step 1).
func (s *System) SetBusyMode(busy bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.busy = busy
}

// SetNoRandomPitch disables the pseudo-random pitch shift of step 4
// (spec §6 "-norndpitch").
func (s *System) SetNoRandomPitch(disable bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.noRandomPitch = disable
}

// SetCVars replaces the live cvars snapshot, e.g. after a console
// "soundvolume" command.
func (s *System) SetCVars(c config.CVars) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cvars = c
}

// ActivateSFXDriver runs the CLI priority list against the registry for
// the SFX interface and remembers the winner (spec §4.5, §6 "-isfx").
func (s *System) ActivateSFXDriver(keys []string) error {
	d, err := s.drivers.ActivatePriorityList(keys, driver.InterfaceSFX)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.activeSFX = d
	s.mu.Unlock()
	return nil
}

// ActivateMusicDriver runs the CLI priority list against the registry
// for the Music interface. Only a *driver.BeepDriver can currently serve
// PlayMusic/StopMusic/PauseMusic; other drivers activate successfully
// but console music commands become no-ops against them (spec §4.5,
// §6 "-imusic").
func (s *System) ActivateMusicDriver(keys []string) error {
	d, err := s.drivers.ActivatePriorityList(keys, driver.InterfaceMusic)
	if err != nil {
		return err
	}
	s.mu.Lock()
	if beepDrv, ok := d.(*driver.BeepDriver); ok {
		s.activeMusic = beepDrv
	}
	s.mu.Unlock()
	return nil
}

// Drivers exposes the driver registry for console inspection commands.
func (s *System) Drivers() *driver.Registry { return s.drivers }

// Mixer exposes the mixer for console inspection commands.
func (s *System) Mixer() *mixer.Mixer { return s.mixer }

// PlaySound triggers a one-off sound effect outside the normal
// Stage/Addition flow, for the "playsound" console command (spec §6).
func (s *System) PlaySound(effectID int32, volume float64) bool {
	before := s.channelsPlayingEffect(effectID)
	snd := &stage.Sound{
		EffectID: effectID,
		Params:   stage.PlayParams{EffectID: effectID, Volume: volume, FrequencyScale: 1.0},
		EndMs:    1000,
	}
	s.HandleAddition(snd, false, 0, 0)
	return len(s.channelsPlayingEffect(effectID)) > len(before)
}

// PlayMusic loads and starts path on the active music driver's stream,
// for the "playmusic" console command (spec §6).
func (s *System) PlayMusic(path string) error {
	s.mu.Lock()
	m := s.activeMusic
	s.mu.Unlock()
	if m == nil {
		return driver.ErrMissingDriver
	}
	stream := m.MusicStream()
	if stream == nil {
		return driver.ErrMissingDriver
	}
	if err := stream.Load(path); err != nil {
		return err
	}
	stream.SetEnabled(true)
	return nil
}

// StopMusic disables the active music stream (spec §6 "stopmusic").
func (s *System) StopMusic() {
	s.mu.Lock()
	m := s.activeMusic
	s.mu.Unlock()
	if m == nil {
		return
	}
	if stream := m.MusicStream(); stream != nil {
		stream.SetEnabled(false)
	}
}

// PauseMusic is an alias for StopMusic: the underlying decoder keeps its
// position, so re-enabling resumes rather than restarts (spec §6
// "pausemusic").
func (s *System) PauseMusic() {
	s.StopMusic()
}

// Start begins the refresh worker's background loop.
func (s *System) Start() { s.worker.Start() }

// Stop ends the refresh worker's background loop.
func (s *System) Stop() { s.worker.Stop(); s.limiter.Stop() }

// PauseRefresh and ResumeRefresh expose the refresh worker's quiesce gate
// to external collaborators — notably the SampleCache, which must pause
// refresh around any eviction that frees bytes a channel might be reading
// (spec §4.2 "Concurrency").
func (s *System) PauseRefresh()  { s.worker.Pause() }
func (s *System) ResumeRefresh() { s.worker.Resume() }

func (s *System) refreshTick() {
	now := s.clock()
	s.mixer.ForAllChannels(func(ch *channel.Channel) {
		ch.MaybeExpire(now)
	})
}

// HandleAddition implements the 12-step channel-selection algorithm of
// spec §4.7. isWorldStage selects whether the audible-range check of
// step 2 applies. nowMs is the caller's monotonic clock, passed in
// rather than read from a package global so selection stays testable.
func (s *System) HandleAddition(snd *stage.Sound, isWorldStage bool, nowMs int64, nowTick int64) {
	s.mu.Lock()
	cvars := s.cvars
	busy := s.busy
	noRnd := s.noRandomPitch
	s.mu.Unlock()

	// Step 1: busy mode / global or per-sound volume gate.
	if busy || cvars.SoundVolume == 0 || snd.Params.Volume == 0 {
		return
	}
	if !s.limiter.Allow(snd.EffectID) {
		return
	}

	def, hasDef := s.defs.Lookup(snd.EffectID)

	noOrigin := snd.Params.Flags&listener.FlagNoOrigin != 0
	noAtten := snd.Params.Flags&listener.FlagNoVolumeAttenuation != 0 || def.Flags&NoVolumeAttenuation != 0

	// Step 2: audible-range check for WorldStage sounds.
	if isWorldStage && !noOrigin && !noAtten && s.worldL != nil {
		origin := listener.Vec3{}
		if snd.Emitter != nil {
			origin = snd.Emitter.Origin()
		}
		if !s.worldL.InAudibleRangeOf(origin) {
			return
		}
	}

	// Step 3: cache the waveform; drop if empty.
	target := sample.Target{UpsampleFactor: int(cvars.RateHz / 11025), Bit16: cvars.Bit16}
	cached := s.cache.Cache(snd.EffectID, target)
	if cached == nil || len(cached.Data) == 0 {
		return
	}

	// Step 4: frequency scale, with optional pseudo-random pitch shift.
	freq := snd.Params.FrequencyScale
	if freq == 0 {
		freq = 1.0
	}
	if !noRnd && hasDef {
		if def.Flags&RandomShift != 0 {
			freq *= 1.0 + (rand.Float64()*2-1)*7.0/255.0
		} else if def.Flags&RandomShift2 != 0 {
			freq *= 1.0 + (rand.Float64()*2-1)*15.0/255.0
		}
	}

	// Step 5: exclusion group — stop every currently playing channel in
	// the same group, scoped to this emitter unless GlobalExclude.
	if hasDef && def.Group != 0 {
		global := def.Flags&GlobalExclude != 0
		s.mixer.ForAllChannels(func(ch *channel.Channel) {
			if !ch.IsPlaying() {
				return
			}
			chDef, ok := s.defs.Lookup(ch.EffectID())
			if !ok || chDef.Group != def.Group {
				return
			}
			if !global && snd.Emitter != nil {
				// Per-emitter scoping needs the channel's own emitter,
				// which isn't tracked on Channel; conservatively stop
				// only when GlobalExclude was requested or there is no
				// emitter to scope against.
				return
			}
			ch.Stop()
		})
	}

	// Step 6: positioning.
	positioning := channel.Stereo
	if cvars.Enable3D && !noOrigin {
		positioning = channel.Absolute
	}

	// Step 7: priority, rated against the canonical world listener.
	var priority float64
	if s.worldL != nil {
		origin := listener.Vec3{}
		if snd.Emitter != nil {
			origin = snd.Emitter.Origin()
		}
		startTick := snd.StartMs * listener.TICKRATE / 1000
		priority = s.worldL.RateSoundPriority(startTick, nowTick, snd.Params.Volume, snd.Params.Flags, origin)
	}

	bytesPerSample := cached.BytesPerSample
	rateHz := cached.RateHz

	// Step 8: per-effect channel cap.
	if hasDef && def.ChannelCap > 0 {
		if !s.enforceChannelCap(snd.EffectID, def.ChannelCap, priority) {
			return
		}
	}

	// Step 9: hit bookkeeping.
	s.cache.Hit(snd.EffectID)

	// Steps 10-12: quiesce refresh, select, configure, play.
	s.worker.Pause()
	defer s.worker.Resume()

	ch := s.selectChannel(positioning, bytesPerSample, rateHz, cached.EffectID, priority)
	if ch == nil {
		return
	}

	if !ch.FormatMatches(positioning, bytesPerSample, rateHz) {
		ch.Reformat(positioning, bytesPerSample, rateHz)
	}
	if err := ch.Load(sampleRefAdapter{cached}); err != nil {
		log.Printf("audiosystem: load effect %d: %v", snd.EffectID, err)
		return
	}

	mode := channel.ModeOnce
	if snd.Params.Repeat || (hasDef && def.Flags&Repeat != 0) {
		mode = channel.ModeLooping
	} else if hasDef && def.Flags&DontStop != 0 {
		mode = channel.ModeOnceDontDelete
	}

	volume := snd.Params.Volume
	if hasDef && def.VolumeScale != 0 {
		volume *= def.VolumeScale
	}

	if err := ch.Play(mode, volume, freq, 0, nowMs, snd.EndMs); err != nil {
		log.Printf("audiosystem: play effect %d: %v", snd.EffectID, err)
		return
	}
	ch.SetEffectID(snd.EffectID)
	ch.SetPriority(priority)
	s.sfxTrack.AddChannel(ch)
}

// sampleRefAdapter satisfies channel.SampleRef without giving package
// sample a dependency on package channel.
type sampleRefAdapter struct {
	s *sample.Sample
}

func (a sampleRefAdapter) ID() int32            { return a.s.EffectID }
func (a sampleRefAdapter) BytesPerSample() int   { return a.s.BytesPerSample }
func (a sampleRefAdapter) RateHz() uint32        { return a.s.RateHz }
func (a sampleRefAdapter) Bytes() []byte         { return a.s.Data }

// enforceChannelCap stops the lowest-priority instance of effectID
// whose priority is <= candidatePriority while the playing count for
// that effect id is at or above cap. Returns false if the cap could not
// be satisfied and the new sound must be dropped (spec §4.7 step 8).
func (s *System) enforceChannelCap(effectID int32, maxCount int, candidatePriority float64) bool {
	for {
		playing := s.channelsPlayingEffect(effectID)
		if len(playing) < maxCount {
			return true
		}

		var worst *channel.Channel
		var worstPriority float64
		for _, ch := range playing {
			p := ch.Priority()
			if worst == nil || p < worstPriority {
				worst = ch
				worstPriority = p
			}
		}
		if worst == nil || worstPriority > candidatePriority {
			return false
		}
		worst.Stop()
	}
}

func (s *System) channelsPlayingEffect(effectID int32) []*channel.Channel {
	var out []*channel.Channel
	s.mixer.ForAllChannels(func(ch *channel.Channel) {
		if ch.IsPlaying() && ch.EffectID() == effectID {
			out = append(out, ch)
		}
	})
	return out
}

// selectChannel implements the 4-tier search of spec §4.7 step 10.
func (s *System) selectChannel(positioning channel.Positioning, bytesPerSample int, rateHz uint32, effectID int32, priority float64) *channel.Channel {
	var (
		sameSampleIdle *channel.Channel
		emptyIdle      *channel.Channel
		anyIdle        *channel.Channel
		preemptable    *channel.Channel
		preemptPrio    float64
	)

	s.mixer.ForAllChannels(func(ch *channel.Channel) {
		if ch.Kind != channel.KindSound {
			return
		}
		matches := ch.FormatMatches(positioning, bytesPerSample, rateHz)

		if !ch.IsPlaying() {
			if matches {
				if loaded := ch.LoadedSample(); loaded != nil && loaded.ID() == effectID {
					if sameSampleIdle == nil {
						sameSampleIdle = ch
					}
					return
				}
				if ch.LoadedSample() == nil && emptyIdle == nil {
					emptyIdle = ch
					return
				}
				if anyIdle == nil {
					anyIdle = ch
				}
			}
			return
		}

		if ch.Positioning == positioning && ch.Priority() <= priority {
			if preemptable == nil || ch.Priority() < preemptPrio {
				preemptable = ch
				preemptPrio = ch.Priority()
			}
		}
	})

	switch {
	case sameSampleIdle != nil:
		return sameSampleIdle
	case emptyIdle != nil:
		return emptyIdle
	case anyIdle != nil:
		return anyIdle
	case preemptable != nil:
		if preemptable.Mode() == channel.ModeOnceDontDelete {
			preemptable.Suspend()
			return nil
		}
		preemptable.Stop()
		return preemptable
	default:
		return nil
	}
}

// AllocateSoundChannels asks the active SFX driver for count fresh
// channels and adds them to the "fx" track — the pool channel selection
// draws from (spec §6 "-sfxchan", default 16 via config.DriverConfig).
func (s *System) AllocateSoundChannels(count int, positioning channel.Positioning, bytesPerSample int, rateHz uint32) {
	s.mu.Lock()
	drv := s.activeSFX
	s.mu.Unlock()
	if drv == nil {
		return
	}
	for i := 0; i < count; i++ {
		ch := drv.MakeChannel(driver.InterfaceSFX, positioning, bytesPerSample, rateHz)
		if ch != nil {
			s.sfxTrack.AddChannel(ch)
		}
	}
}
