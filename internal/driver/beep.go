package driver

import (
	"fmt"
	"sync"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"
	"github.com/gopxl/beep/speaker"

	"audiostage/internal/channel"
)

// BeepDriver opens the system's default audio output via gopxl/beep on
// Initialize and owns a MusicStream decoder, and exposes SFX and Music
// interfaces (no CD interface). It does not hand any streamer to the
// speaker: the MusicStream is read only through its ReadSamples method,
// and the sfxChannel volume effect is never set, so no volume or pan is
// applied by beep/effects (spec §4.5, §3.6 domain-stack wiring).
type BeepDriver struct {
	mu        sync.Mutex
	status    Status
	active    map[InterfaceKind]bool
	sampleHz  int
	music     *MusicStream
	channels  []*sfxChannel
}

// sfxChannel pairs a logical Channel with the beep volume/pan effect
// wrapping its in-memory streamer.
type sfxChannel struct {
	ch     *channel.Channel
	volume *effects.Volume
}

// NewBeepDriver creates a BeepDriver targeting sampleHz for its speaker
// output and music resampling.
func NewBeepDriver(sampleHz int) *BeepDriver {
	return &BeepDriver{sampleHz: sampleHz, active: make(map[InterfaceKind]bool)}
}

func (d *BeepDriver) IdentityKeys() []string { return []string{"beep", "default"} }

func (d *BeepDriver) ListInterfaces() []InterfaceKind {
	return []InterfaceKind{InterfaceSFX, InterfaceMusic}
}

// Initialize opens the system speaker at the driver's target sample rate
// (spec §4.5 "Initialize: opens the physical device").
func (d *BeepDriver) Initialize() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	sr := beep.SampleRate(d.sampleHz)
	bufferSize := sr.N(time.Second / 30)
	if err := speaker.Init(sr, bufferSize); err != nil {
		return fmt.Errorf("beep driver: speaker init: %w", err)
	}
	d.music = NewMusicStream(d.sampleHz)
	d.status = StatusInitialized
	return nil
}

func (d *BeepDriver) Deinitialize() {
	d.mu.Lock()
	defer d.mu.Unlock()
	speaker.Close()
	if d.music != nil {
		d.music.Close()
	}
	d.status = StatusLoaded
	d.active = make(map[InterfaceKind]bool)
	d.channels = nil
}

func (d *BeepDriver) Status() Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.status
}

func (d *BeepDriver) InitInterface(kind InterfaceKind) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.active[kind] = true
	return nil
}

func (d *BeepDriver) DeinitInterface(kind InterfaceKind) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.active, kind)
}

// MusicStream exposes the driver's decoder for direct Load/volume calls
// from the music-track console commands (spec §6).
func (d *BeepDriver) MusicStream() *MusicStream {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.music
}

// MakeChannel allocates a logical Channel for the given interface kind
// and records it in the driver's channel list, or returns nil for the CD
// interface, which this driver does not expose. The channel has no Buffer
// and is not connected to the MusicStream or to any beep effect.
func (d *BeepDriver) MakeChannel(kind InterfaceKind, positioning channel.Positioning, bytesPerSample int, rateHz uint32) *channel.Channel {
	if kind == InterfaceCD {
		return nil
	}
	ck := channel.KindSound
	if kind == InterfaceMusic {
		ck = channel.KindMusic
	}
	ch := channel.New(ck, positioning, bytesPerSample, rateHz)

	d.mu.Lock()
	d.channels = append(d.channels, &sfxChannel{ch: ch})
	d.mu.Unlock()

	return ch
}

// AllowRefresh pauses (false) or resumes (true) the speaker's output
// callback by locking or unlocking the speaker (spec §4.9).
func (d *BeepDriver) AllowRefresh(allow bool) {
	if allow {
		speaker.Unlock()
	} else {
		speaker.Lock()
	}
}
