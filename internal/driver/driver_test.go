package driver

import (
	"errors"
	"testing"

	"audiostage/internal/channel"
)

func TestInstallRejectsDuplicateKey(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Install(NewNullDriver()); err != nil {
		t.Fatalf("first install: %v", err)
	}
	if err := reg.Install(NewNullDriver()); !errors.Is(err, ErrDuplicateKey) {
		t.Errorf("second install err = %v, want ErrDuplicateKey", err)
	}
}

func TestFindDriverMissing(t *testing.T) {
	reg := NewRegistry()
	if _, err := reg.FindDriver("nope"); !errors.Is(err, ErrMissingDriver) {
		t.Errorf("err = %v, want ErrMissingDriver", err)
	}
	if _, ok := reg.TryFindDriver("nope"); ok {
		t.Error("expected ok=false for unknown key")
	}
}

func TestFindDriverByAnyIdentityKey(t *testing.T) {
	reg := NewRegistry()
	reg.Install(NewNullDriver())

	for _, key := range []string{"dummy", "NULL", "noaudio"} {
		if _, err := reg.FindDriver(key); err != nil {
			t.Errorf("FindDriver(%q) = %v", key, err)
		}
	}
}

func TestActivatePriorityListPicksFirstCapableDriver(t *testing.T) {
	reg := NewRegistry()
	reg.Install(NewNullDriver())

	d, err := reg.ActivatePriorityList([]string{"missing", "dummy"}, InterfaceSFX)
	if err != nil {
		t.Fatalf("ActivatePriorityList: %v", err)
	}
	if d == nil {
		t.Fatal("expected a driver to be returned")
	}
	if d.Status() != StatusInitialized {
		t.Error("expected winning driver to be initialized")
	}
}

func TestActivatePriorityListFailsWhenNoneCapable(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.ActivatePriorityList([]string{"missing"}, InterfaceSFX)
	if err == nil {
		t.Fatal("expected an error when no listed driver exists")
	}
}

func TestNullDriverMakeChannelFormat(t *testing.T) {
	d := NewNullDriver()
	ch := d.MakeChannel(InterfaceSFX, channel.Stereo, 2, 11025)
	if ch.Kind != channel.KindSound {
		t.Errorf("Kind = %v, want KindSound", ch.Kind)
	}
	if !ch.FormatMatches(channel.Stereo, 2, 11025) {
		t.Error("expected channel format to match requested format")
	}
}

func TestNullDriverMusicChannelKind(t *testing.T) {
	d := NewNullDriver()
	ch := d.MakeChannel(InterfaceMusic, channel.Stereo, 2, 44100)
	if ch.Kind != channel.KindMusic {
		t.Errorf("Kind = %v, want KindMusic", ch.Kind)
	}
}

func TestNullDriverLifecycle(t *testing.T) {
	d := NewNullDriver()
	if d.Status() != StatusLoaded {
		t.Fatal("expected initial status Loaded")
	}
	if err := d.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if d.Status() != StatusInitialized {
		t.Error("expected Initialized after Initialize")
	}
	if err := d.InitInterface(InterfaceCD); err != nil {
		t.Errorf("InitInterface: %v", err)
	}
	d.DeinitInterface(InterfaceCD)
	d.Deinitialize()
	if d.Status() != StatusLoaded {
		t.Error("expected Loaded after Deinitialize")
	}
}
