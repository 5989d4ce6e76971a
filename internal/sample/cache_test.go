package sample

import "testing"

type fakeLoader struct {
	sounds map[int32][]byte
}

func (f *fakeLoader) Load(effectID int32) ([]byte, int, uint32, uint32, bool) {
	data, ok := f.sounds[effectID]
	if !ok {
		return nil, 0, 0, 0, false
	}
	return data, 1, 11025, uint32(len(data)), true
}

func newTestCache(sounds map[int32][]byte) (*Cache, *fakeTick) {
	clk := &fakeTick{}
	loader := &fakeLoader{sounds: sounds}
	return New(loader, nil, clk.Now), clk
}

type fakeTick struct{ t int64 }

func (f *fakeTick) Now() int64 { return f.t }

func TestCacheMissThenHitReturnsSamePointer(t *testing.T) {
	c, _ := newTestCache(map[int32][]byte{1: {1, 2, 3, 4}})

	s1 := c.Cache(1, Target{UpsampleFactor: 1})
	s2 := c.Cache(1, Target{UpsampleFactor: 1})

	if s1 == nil || s2 == nil {
		t.Fatal("expected non-nil samples")
	}
	if s1 != s2 {
		t.Error("expected pointer-equal samples on repeated cache() calls")
	}
}

func TestCacheRejectsNonPositiveID(t *testing.T) {
	c, _ := newTestCache(map[int32][]byte{1: {1, 2}})
	if s := c.Cache(0, Target{}); s != nil {
		t.Error("expected nil for effect id 0")
	}
	if s := c.Cache(-5, Target{}); s != nil {
		t.Error("expected nil for negative effect id")
	}
}

func TestCacheMissingMetadataReturnsNil(t *testing.T) {
	c, _ := newTestCache(map[int32][]byte{})
	if s := c.Cache(42, Target{}); s != nil {
		t.Error("expected nil when no metadata exists")
	}
}

func TestCacheAtMostOneItemPerEffectID(t *testing.T) {
	c, _ := newTestCache(map[int32][]byte{7: {1, 2, 3}})
	c.Cache(7, Target{})
	c.Cache(7, Target{})
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}
}

func TestMaybeRunPurgeAgePass(t *testing.T) {
	c, clk := newTestCache(map[int32][]byte{1: {1, 2, 3, 4}})
	c.Cache(1, Target{})
	clk.t = PurgeIntervalTicks + 1

	c.MaybeRunPurge(nil) // first purge establishes lastPurgeTk

	clk.t = PurgeIntervalTicks + MaxCacheTicks + 2
	c.MaybeRunPurge(nil)

	if c.Len() != 0 {
		t.Errorf("expected aged-out item to be purged, Len() = %d", c.Len())
	}
}

func TestMaybeRunPurgeIsNoOpWithinInterval(t *testing.T) {
	c, clk := newTestCache(map[int32][]byte{1: {1, 2, 3, 4}})
	c.Cache(1, Target{})
	clk.t = PurgeIntervalTicks / 2
	c.MaybeRunPurge(nil)
	if c.Len() != 1 {
		t.Errorf("expected no purge yet, Len() = %d", c.Len())
	}
}

func TestSizePassEvictsLowestHitsFirst(t *testing.T) {
	c, _ := newTestCache(map[int32][]byte{
		1: make([]byte, 100),
		2: make([]byte, 100),
	})
	c.SetMaxBytes(150)

	c.Cache(1, Target{})
	c.Cache(2, Target{})
	c.Hit(2) // id 2 now has more hits, id 1 should be evicted first

	c.sizePass(func(int32) bool { return false })

	if c.Cache(2, Target{}) == nil {
		t.Error("expected id 2 (more hits) to survive")
	}
	if c.TotalBytes() > 150 {
		t.Errorf("TotalBytes() = %d, want <= 150", c.TotalBytes())
	}
}

func TestSizePassNeverEvictsPlayingSample(t *testing.T) {
	c, _ := newTestCache(map[int32][]byte{
		1: make([]byte, 100),
		2: make([]byte, 100),
	})
	c.SetMaxBytes(50)

	c.Cache(1, Target{})
	c.Cache(2, Target{})

	c.sizePass(func(id int32) bool { return id == 1 })

	if c.Cache(1, Target{}) == nil {
		t.Error("expected playing sample (id 1) to survive eviction")
	}
}

func TestOnSampleRemoveNotifiedBeforeEviction(t *testing.T) {
	c, clk := newTestCache(map[int32][]byte{1: {1, 2, 3, 4}})
	c.Cache(1, Target{})

	notified := false
	c.OnSampleRemove(func(effectID int32, s *Sample) {
		notified = true
	})

	clk.t = PurgeIntervalTicks + MaxCacheTicks + 2
	c.MaybeRunPurge(nil)

	if !notified {
		t.Error("expected SampleRemove audience to be notified")
	}
}

func TestClearRemovesEverything(t *testing.T) {
	c, _ := newTestCache(map[int32][]byte{1: {1}, 2: {2}})
	c.Cache(1, Target{})
	c.Cache(2, Target{})
	c.Clear()
	if c.Len() != 0 {
		t.Errorf("Len() = %d after Clear(), want 0", c.Len())
	}
}
