// Package channel implements the single hardware-backed playback slot
// (spec §3 "Channel", §4.8 "Channel state machine"). A Channel is a
// tagged-variant type instead of the original's Cd/Music/Sound class
// hierarchy (spec §9 "Deep inheritance hierarchy").
package channel

import (
	"errors"
	"sync"
)

// Kind distinguishes the three channel variants.
type Kind int

const (
	KindSound Kind = iota
	KindMusic
	KindCd
)

// Positioning is Stereo for plain 2D sounds, Absolute for 3D-positioned
// ones (spec §3 invariant: Absolute iff the channel was formatted 3D).
type Positioning int

const (
	Stereo Positioning = iota
	Absolute
)

// Mode controls what happens when a Sound channel reaches its end tick.
type Mode int

const (
	ModeOnce Mode = iota
	ModeOnceDontDelete
	ModeLooping
)

// State is the Sound-channel state machine of spec §4.8.
type State int

const (
	Empty State = iota
	Loaded
	Playing
	Stopped
)

// Flags mirror the Channel flags of spec §3.
type Flags uint8

const (
	Flag3D Flags = 1 << iota
	FlagPlaying
	FlagRepeat
	FlagReload
	FlagDontStop
)

var (
	// ErrMissingBuffer is raised from Load/Play/Buffer when no data buffer
	// is configured (spec §7 "MissingBuffer").
	ErrMissingBuffer = errors.New("channel: no sample loaded")
	// ErrIllegalTransition is raised when a state-machine edge not shown
	// in spec §4.8's diagram is attempted.
	ErrIllegalTransition = errors.New("channel: illegal state transition")
)

// SampleRef is the minimal view a Channel needs of a cached sample; it
// avoids an import-cycle with package sample while still letting a
// Channel compare "is this my loaded sample" by effect id (ID()).
type SampleRef interface {
	ID() int32
	BytesPerSample() int
	RateHz() uint32
	Bytes() []byte
}

// Buffer is the live data buffer a driver refreshes (spec §3, §4.9). The
// driver that created the channel owns the concrete implementation; the
// channel only needs to push newly-decoded bytes into it and reset it.
type Buffer interface {
	Write(data []byte)
	Reset()
}

// Channel is a single playback slot. Only Sound-kind channels use the
// fields below State; Music/Cd channels use Start/Stop/SetVolume but
// ignore the Sound-only state machine.
type Channel struct {
	mu sync.Mutex

	Kind Kind

	// Sound-channel format (spec §3 Channel invariants).
	Positioning    Positioning
	BytesPerSample int
	RateHz         uint32

	loaded  SampleRef
	state   State
	mode    Mode
	flags   Flags
	volume  float64
	freq    float64 // frequency scale
	pan     float64 // -1..1
	startMs int64
	endMs   int64

	buffer Buffer

	// effectID and priority are set by the channel-selection algorithm
	// (spec §4.7) so later Addition events can scan currently-playing
	// channels for exclusion-group stops and per-effect cap enforcement
	// without a side table.
	effectID int32
	priority float64

	// onDelete audience — the Mixer's Track observes this to auto-unmap
	// the channel (spec §4.6).
	onDelete []func(*Channel)
}

// New creates an Empty channel of the given kind and format.
func New(kind Kind, positioning Positioning, bytesPerSample int, rateHz uint32) *Channel {
	return &Channel{
		Kind:           kind,
		Positioning:    positioning,
		BytesPerSample: bytesPerSample,
		RateHz:         rateHz,
		state:          Empty,
		volume:         1.0,
		freq:           1.0,
	}
}

// SetBuffer attaches the live data buffer the driver refreshes into.
func (c *Channel) SetBuffer(b Buffer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.buffer = b
}

// State returns the current state-machine state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsPlaying reports whether the channel is currently playing. Invariant:
// if true, LoadedSample() is non-nil and EndMs() > 0 (spec §8 invariant 4).
func (c *Channel) IsPlaying() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == Playing
}

// LoadedSample returns the currently-loaded sample, or nil.
func (c *Channel) LoadedSample() SampleRef {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loaded
}

// FormatMatches reports whether this channel's format matches the given
// positioning/bit-depth/rate — the comparison channel selection (spec
// §4.7) uses repeatedly.
func (c *Channel) FormatMatches(p Positioning, bytesPerSample int, rateHz uint32) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Positioning == p && c.BytesPerSample == bytesPerSample && c.RateHz == rateHz
}

// Reformat changes the channel's format. Only legal when not Playing.
func (c *Channel) Reformat(p Positioning, bytesPerSample int, rateHz uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Positioning = p
	c.BytesPerSample = bytesPerSample
	c.RateHz = rateHz
	c.loaded = nil
	c.state = Empty
}

// Load attaches a sample to the channel. Empty -> Loaded, or
// Stopped(+Reload) -> Loaded when reloading the same sample after stop.
func (c *Channel) Load(s SampleRef) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case Empty, Stopped:
		c.loaded = s
		c.state = Loaded
		c.flags &^= FlagReload
		if c.buffer != nil {
			c.buffer.Reset()
		}
		return nil
	default:
		return ErrIllegalTransition
	}
}

// Play transitions Loaded -> Playing, setting mode, volume, frequency
// scale, pan, and the absolute start/end tick in milliseconds.
func (c *Channel) Play(mode Mode, volume, freq, pan float64, nowMs int64, endMs int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.loaded == nil {
		return ErrMissingBuffer
	}
	if c.state == Stopped && c.flags&FlagReload != 0 {
		// Reload the same sample that was playing before Stop.
		c.state = Loaded
		c.flags &^= FlagReload
		if c.buffer != nil {
			c.buffer.Reset()
		}
	}
	if c.state != Loaded {
		return ErrIllegalTransition
	}

	c.mode = mode
	c.volume = volume
	c.freq = freq
	c.pan = pan
	c.startMs = nowMs
	c.endMs = endMs
	c.state = Playing
	c.flags |= FlagPlaying
	if mode == ModeLooping {
		c.flags |= FlagRepeat
	} else {
		c.flags &^= FlagRepeat
	}
	return nil
}

// Stop transitions Playing (or Loaded) -> Stopped and sets the Reload
// flag so the next Play first reloads the same sample (spec §4.8).
func (c *Channel) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Playing && c.state != Loaded {
		return
	}
	c.state = Stopped
	c.flags &^= FlagPlaying
	c.flags |= FlagReload
}

// Suspend pauses an OnceDontDelete channel without discarding its buffer
// state (spec §4.7 step 10: "it is suspended instead of stolen").
// Suspend stops delivery but keeps the sample loaded and the channel in
// the Loaded state so it can resume without a reload.
func (c *Channel) Suspend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Playing {
		return
	}
	c.state = Loaded
	c.flags &^= FlagPlaying
}

// Reset detaches the loaded sample without transitioning through Stopped;
// called by the SampleCache's eviction callback before the sample's bytes
// are freed (spec §4.8).
func (c *Channel) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loaded = nil
	c.state = Empty
	c.flags &^= FlagPlaying
	if c.buffer != nil {
		c.buffer.Reset()
	}
}

// MaybeExpire transitions Playing -> Stopped if nowMs has reached the end
// tick and the channel is not repeating (spec §4.8, refresh worker).
func (c *Channel) MaybeExpire(nowMs int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Playing {
		return
	}
	if c.mode == ModeLooping {
		return
	}
	if nowMs >= c.endMs {
		c.state = Stopped
		c.flags &^= FlagPlaying
		c.flags |= FlagReload
	}
}

// EndMs returns the absolute end tick in milliseconds.
func (c *Channel) EndMs() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.endMs
}

// StartMs returns the absolute start tick in milliseconds.
func (c *Channel) StartMs() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.startMs
}

// Mode returns the channel's playback mode.
func (c *Channel) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// Volume returns the channel's current volume.
func (c *Channel) Volume() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.volume
}

// SetVolume updates the channel's volume without affecting playback state
// (frame-end property flush, spec §2).
func (c *Channel) SetVolume(v float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.volume = v
}

// Pan returns the channel's stereo pan, -1..1.
func (c *Channel) Pan() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pan
}

// SetPan updates the channel's stereo pan.
func (c *Channel) SetPan(p float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p < -1 {
		p = -1
	} else if p > 1 {
		p = 1
	}
	c.pan = p
}

// FrequencyScale returns the channel's pitch/frequency multiplier.
func (c *Channel) FrequencyScale() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.freq
}

// FlagBits returns the channel's current flag bits.
func (c *Channel) FlagBits() Flags {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.flags
}

// EffectID returns the effect id the channel-selection algorithm last
// assigned to this channel.
func (c *Channel) EffectID() int32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.effectID
}

// SetEffectID tags the channel with the effect id it is now playing.
func (c *Channel) SetEffectID(id int32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.effectID = id
}

// Priority returns the priority the channel-selection algorithm
// computed when it started (or last preempted into) this channel.
func (c *Channel) Priority() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.priority
}

// SetPriority records the candidate priority this channel was selected
// with, used by later Addition events comparing preemption candidates.
func (c *Channel) SetPriority(p float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.priority = p
}

// OnDelete subscribes fn to this channel's deletion audience (spec §4.6:
// "a channel unmaps itself automatically from every Track on its
// destruction").
func (c *Channel) OnDelete(fn func(*Channel)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onDelete = append(c.onDelete, fn)
}

// Destroy fires the deletion audience. The driver that owns the channel
// calls this once, at teardown.
func (c *Channel) Destroy() {
	c.mu.Lock()
	fns := append([]func(*Channel){}, c.onDelete...)
	c.mu.Unlock()
	for _, fn := range fns {
		fn(c)
	}
}
