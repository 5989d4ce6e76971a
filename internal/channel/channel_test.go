package channel

import "testing"

type fakeSample struct {
	id int32
}

func (f *fakeSample) ID() int32            { return f.id }
func (f *fakeSample) BytesPerSample() int  { return 2 }
func (f *fakeSample) RateHz() uint32       { return 11025 }
func (f *fakeSample) Bytes() []byte        { return nil }

func TestLoadPlayStopLifecycle(t *testing.T) {
	c := New(KindSound, Stereo, 2, 11025)
	if c.State() != Empty {
		t.Fatalf("new channel state = %v, want Empty", c.State())
	}

	if err := c.Play(ModeOnce, 1, 1, 0, 0, 100); err != ErrMissingBuffer {
		t.Errorf("Play on empty channel = %v, want ErrMissingBuffer", err)
	}

	if err := c.Load(&fakeSample{id: 1}); err != nil {
		t.Fatalf("Load() = %v", err)
	}
	if c.State() != Loaded {
		t.Fatalf("state after Load = %v, want Loaded", c.State())
	}

	if err := c.Play(ModeOnce, 1, 1, 0, 0, 100); err != nil {
		t.Fatalf("Play() = %v", err)
	}
	if !c.IsPlaying() {
		t.Fatal("expected IsPlaying() true after Play")
	}
	if c.LoadedSample() == nil || c.EndMs() == 0 {
		t.Error("invariant violated: playing channel must have sample and endMs > 0")
	}

	c.Stop()
	if c.State() != Stopped {
		t.Fatalf("state after Stop = %v, want Stopped", c.State())
	}
	if c.FlagBits()&FlagReload == 0 {
		t.Error("expected Reload flag set after Stop")
	}
}

func TestReloadAfterStopReusesSample(t *testing.T) {
	c := New(KindSound, Stereo, 2, 11025)
	s := &fakeSample{id: 5}
	c.Load(s)
	c.Play(ModeOnce, 1, 1, 0, 0, 100)
	c.Stop()

	if err := c.Load(s); err != nil {
		t.Fatalf("reload after stop: %v", err)
	}
	if c.State() != Loaded {
		t.Fatalf("state = %v, want Loaded", c.State())
	}
}

func TestMaybeExpireStopsAtEndTick(t *testing.T) {
	c := New(KindSound, Stereo, 2, 11025)
	c.Load(&fakeSample{id: 1})
	c.Play(ModeOnce, 1, 1, 0, 100, 200)

	c.MaybeExpire(150)
	if c.State() != Playing {
		t.Fatal("expected still playing before end tick")
	}

	c.MaybeExpire(200)
	if c.State() != Stopped {
		t.Fatalf("state = %v, want Stopped at end tick", c.State())
	}
}

func TestMaybeExpireNeverStopsLoopingChannel(t *testing.T) {
	c := New(KindSound, Stereo, 2, 11025)
	c.Load(&fakeSample{id: 1})
	c.Play(ModeLooping, 1, 1, 0, 0, 50)
	c.MaybeExpire(10000)
	if c.State() != Playing {
		t.Error("looping channel must never auto-stop")
	}
}

func TestSuspendKeepsSampleLoaded(t *testing.T) {
	c := New(KindSound, Stereo, 2, 11025)
	c.Load(&fakeSample{id: 1})
	c.Play(ModeOnceDontDelete, 1, 1, 0, 0, 100)
	c.Suspend()

	if c.IsPlaying() {
		t.Error("expected not playing after suspend")
	}
	if c.LoadedSample() == nil {
		t.Error("expected sample to remain loaded after suspend")
	}
	if c.State() != Loaded {
		t.Errorf("state = %v, want Loaded", c.State())
	}
}

func TestResetDetachesSample(t *testing.T) {
	c := New(KindSound, Stereo, 2, 11025)
	c.Load(&fakeSample{id: 1})
	c.Play(ModeOnce, 1, 1, 0, 0, 100)

	c.Reset()
	if c.LoadedSample() != nil {
		t.Error("expected no loaded sample after Reset")
	}
	if c.State() != Empty {
		t.Errorf("state = %v, want Empty", c.State())
	}
}

func TestOnDeleteFiresOnDestroy(t *testing.T) {
	c := New(KindSound, Stereo, 2, 11025)
	called := false
	c.OnDelete(func(*Channel) { called = true })
	c.Destroy()
	if !called {
		t.Error("expected OnDelete callback to fire on Destroy")
	}
}

func TestEffectIDAndPriorityTagging(t *testing.T) {
	c := New(KindSound, Stereo, 2, 11025)
	c.SetEffectID(42)
	c.SetPriority(123.5)
	if c.EffectID() != 42 {
		t.Errorf("EffectID() = %d, want 42", c.EffectID())
	}
	if c.Priority() != 123.5 {
		t.Errorf("Priority() = %v, want 123.5", c.Priority())
	}
}

func TestFormatMatches(t *testing.T) {
	c := New(KindSound, Absolute, 2, 22050)
	if !c.FormatMatches(Absolute, 2, 22050) {
		t.Error("expected format to match itself")
	}
	if c.FormatMatches(Stereo, 2, 22050) {
		t.Error("expected positioning mismatch to fail")
	}
}
