package stage

import (
	"testing"

	"audiostage/internal/listener"
)

type fakeWorldObject struct {
	pos listener.Vec3
}

func (f *fakeWorldObject) Position() listener.Vec3                 { return f.pos }
func (f *fakeWorldObject) Velocity() listener.Vec3                 { return listener.Vec3{} }
func (f *fakeWorldObject) YawPitch() (float64, float64)            { return 0, 0 }
func (f *fakeWorldObject) EyeHeight() float64                      { return 0 }
func (f *fakeWorldObject) SectorEnvironment() listener.Environment { return listener.Environment{} }

func TestHandleMapChangeClearsSoundsAndListener(t *testing.T) {
	clock := int64(0)
	ws := NewWorldStage(newTestStage(DontExclude, map[int32]uint32{1: 500}, &clock))
	ws.SetTrackedObject(&fakeWorldObject{pos: listener.Vec3{X: 1}})
	ws.PlaySound(PlayParams{EffectID: 1}, nil)

	ws.HandleMapChange()

	if ws.SoundIsPlaying(1, nil) {
		t.Error("expected sounds cleared after map change")
	}
	if !ws.Position().IsZero() {
		t.Error("expected listener untracked after map change")
	}
}
