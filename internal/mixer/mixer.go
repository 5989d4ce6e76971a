// Package mixer implements the ordered collection of named Tracks, each
// owning a set of non-owning Channel references (spec §3 "Mixer::Track",
// §4.6). Tracks never own channels — the Driver does — so a Track
// observes each channel's deletion event and unmaps automatically.
package mixer

import (
	"strings"
	"sync"

	"audiostage/internal/channel"
)

// Track is a named group of channels (e.g. "music", "fx").
type Track struct {
	mu       sync.Mutex
	id       string
	title    string
	channels map[*channel.Channel]struct{}

	onRemap []func()
}

// ID returns the track's lowercase identifier.
func (t *Track) ID() string { return t.id }

// Title returns the track's display title.
func (t *Track) Title() string { return t.title }

// AddChannel adds ch to the track. Idempotent (spec §4.6).
func (t *Track) AddChannel(ch *channel.Channel) {
	t.mu.Lock()
	_, already := t.channels[ch]
	if !already {
		t.channels[ch] = struct{}{}
	}
	t.mu.Unlock()

	if !already {
		ch.OnDelete(func(c *channel.Channel) { t.RemoveChannel(c) })
		t.notifyRemap()
	}
}

// RemoveChannel removes ch from the track. Idempotent (spec §4.6).
func (t *Track) RemoveChannel(ch *channel.Channel) {
	t.mu.Lock()
	_, present := t.channels[ch]
	delete(t.channels, ch)
	t.mu.Unlock()

	if present {
		t.notifyRemap()
	}
}

// Channels returns a snapshot of the track's current channel set.
func (t *Track) Channels() []*channel.Channel {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*channel.Channel, 0, len(t.channels))
	for ch := range t.channels {
		out = append(out, ch)
	}
	return out
}

// ForAllChannels calls fn for every channel currently in the track.
func (t *Track) ForAllChannels(fn func(*channel.Channel)) {
	for _, ch := range t.Channels() {
		fn(ch)
	}
}

// OnChannelsRemapped subscribes fn to the ChannelsRemapped audience (spec
// §4.6).
func (t *Track) OnChannelsRemapped(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onRemap = append(t.onRemap, fn)
}

func (t *Track) notifyRemap() {
	t.mu.Lock()
	fns := append([]func(){}, t.onRemap...)
	t.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// Mixer is an ordered map of named Tracks (spec §3 "Mixer").
type Mixer struct {
	mu     sync.Mutex
	order  []string
	tracks map[string]*Track
}

// New creates an empty Mixer.
func New() *Mixer {
	return &Mixer{tracks: make(map[string]*Track)}
}

// MakeTrack is idempotent: returns the existing track for id if present,
// otherwise creates one, optionally seeded with an initial channel (spec
// §4.6).
func (m *Mixer) MakeTrack(id, title string, initial *channel.Channel) *Track {
	lower := strings.ToLower(id)

	m.mu.Lock()
	t, ok := m.tracks[lower]
	if !ok {
		t = &Track{id: lower, title: title, channels: make(map[*channel.Channel]struct{})}
		m.tracks[lower] = t
		m.order = append(m.order, lower)
	}
	m.mu.Unlock()

	if initial != nil {
		t.AddChannel(initial)
	}
	return t
}

// FindTrack returns the track for id, or nil.
func (m *Mixer) FindTrack(id string) *Track {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tracks[strings.ToLower(id)]
}

// TryFindTrack is an alias for FindTrack kept for parity with spec
// naming (find_track vs try_find_track both return an optional).
func (m *Mixer) TryFindTrack(id string) (*Track, bool) {
	t := m.FindTrack(id)
	return t, t != nil
}

// ForAllTracks calls fn for every track, in creation order.
func (m *Mixer) ForAllTracks(fn func(*Track)) {
	m.mu.Lock()
	order := append([]string{}, m.order...)
	m.mu.Unlock()

	for _, id := range order {
		m.mu.Lock()
		t := m.tracks[id]
		m.mu.Unlock()
		if t != nil {
			fn(t)
		}
	}
}

// ForAllChannels calls fn for every channel in every track.
func (m *Mixer) ForAllChannels(fn func(*channel.Channel)) {
	m.ForAllTracks(func(t *Track) {
		t.ForAllChannels(fn)
	})
}

// HasChannels reports whether any track currently has at least one
// channel (spec §4.9, the refresh worker's run condition).
func (m *Mixer) HasChannels() bool {
	found := false
	m.ForAllTracks(func(t *Track) {
		if len(t.Channels()) > 0 {
			found = true
		}
	})
	return found
}
