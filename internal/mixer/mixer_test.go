package mixer

import (
	"testing"

	"audiostage/internal/channel"
)

func TestMakeTrackIsIdempotent(t *testing.T) {
	m := New()
	a := m.MakeTrack("fx", "Effects", nil)
	b := m.MakeTrack("FX", "Effects Again", nil)
	if a != b {
		t.Fatal("expected MakeTrack with same id (case-insensitive) to return the same track")
	}
	if a.Title() != "Effects" {
		t.Errorf("title = %q, want first-seen title preserved", a.Title())
	}
}

func TestFindTrackMissing(t *testing.T) {
	m := New()
	if m.FindTrack("nope") != nil {
		t.Error("expected nil for unknown track")
	}
	if _, ok := m.TryFindTrack("nope"); ok {
		t.Error("expected ok=false for unknown track")
	}
}

func TestAddRemoveChannelIdempotent(t *testing.T) {
	track := New().MakeTrack("music", "Music", nil)
	ch := channel.New(channel.KindMusic, channel.Stereo, 2, 44100)

	track.AddChannel(ch)
	track.AddChannel(ch) // idempotent, must not duplicate
	if len(track.Channels()) != 1 {
		t.Fatalf("len(Channels()) = %d, want 1", len(track.Channels()))
	}

	track.RemoveChannel(ch)
	track.RemoveChannel(ch) // idempotent
	if len(track.Channels()) != 0 {
		t.Fatalf("len(Channels()) = %d, want 0 after removal", len(track.Channels()))
	}
}

func TestChannelAutoUnmapsOnDestroy(t *testing.T) {
	track := New().MakeTrack("fx", "Effects", nil)
	ch := channel.New(channel.KindSound, channel.Stereo, 2, 11025)
	track.AddChannel(ch)

	ch.Destroy()
	if len(track.Channels()) != 0 {
		t.Error("expected channel to auto-unmap from track on Destroy")
	}
}

func TestForAllTracksOrder(t *testing.T) {
	m := New()
	m.MakeTrack("music", "Music", nil)
	m.MakeTrack("fx", "Effects", nil)
	m.MakeTrack("cd", "CD", nil)

	var seen []string
	m.ForAllTracks(func(tr *Track) { seen = append(seen, tr.ID()) })

	want := []string{"music", "fx", "cd"}
	if len(seen) != len(want) {
		t.Fatalf("len(seen) = %d, want %d", len(seen), len(want))
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("order[%d] = %q, want %q", i, seen[i], want[i])
		}
	}
}

func TestHasChannelsReflectsState(t *testing.T) {
	m := New()
	track := m.MakeTrack("fx", "Effects", nil)
	if m.HasChannels() {
		t.Fatal("expected HasChannels() false on empty mixer")
	}

	ch := channel.New(channel.KindSound, channel.Stereo, 2, 11025)
	track.AddChannel(ch)
	if !m.HasChannels() {
		t.Fatal("expected HasChannels() true after adding a channel")
	}
}

func TestRemapNotifiedOnAddAndRemove(t *testing.T) {
	track := New().MakeTrack("fx", "Effects", nil)
	calls := 0
	track.OnChannelsRemapped(func() { calls++ })

	ch := channel.New(channel.KindSound, channel.Stereo, 2, 11025)
	track.AddChannel(ch)
	track.RemoveChannel(ch)

	if calls != 2 {
		t.Errorf("remap notifications = %d, want 2", calls)
	}
}
