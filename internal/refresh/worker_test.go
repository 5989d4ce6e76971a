package refresh

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestWorkerTicksWhileActive(t *testing.T) {
	var count int32
	w := NewWorker(func() { atomic.AddInt32(&count, 1) }, func() bool { return true })
	w.Start()
	time.Sleep(ActiveInterval*3 + 50*time.Millisecond)
	w.Stop()

	if atomic.LoadInt32(&count) < 2 {
		t.Errorf("tick count = %d, want at least 2", count)
	}
}

func TestPauseSuspendsTicksUntilResume(t *testing.T) {
	var count int32
	w := NewWorker(func() { atomic.AddInt32(&count, 1) }, func() bool { return true })
	w.Start()
	w.Pause()

	time.Sleep(ActiveInterval*2 + 50*time.Millisecond)
	pausedCount := atomic.LoadInt32(&count)
	if pausedCount > 1 {
		t.Errorf("tick count while paused = %d, want 0 or 1 (in-flight tick allowed)", pausedCount)
	}

	w.Resume()
	time.Sleep(ActiveInterval*2 + 50*time.Millisecond)
	w.Stop()

	if atomic.LoadInt32(&count) <= pausedCount {
		t.Error("expected ticking to resume after Resume()")
	}
}

func TestPauseResumeIdempotent(t *testing.T) {
	w := NewWorker(func() {}, func() bool { return false })
	w.Start()
	w.Pause()
	w.Pause()
	w.Resume()
	w.Resume()
	w.Stop()
}

func TestStopIsIdempotent(t *testing.T) {
	w := NewWorker(func() {}, func() bool { return false })
	w.Start()
	w.Stop()
	w.Stop() // must not panic or block
}

func TestStartIsIdempotent(t *testing.T) {
	var mu sync.Mutex
	count := 0
	w := NewWorker(func() {
		mu.Lock()
		count++
		mu.Unlock()
	}, func() bool { return true })

	w.Start()
	w.Start() // second call must be a no-op, not spawn a second loop
	time.Sleep(ActiveInterval + 50*time.Millisecond)
	w.Stop()
}
