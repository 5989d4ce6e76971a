package stage

// WorldStage is the Stage bound to the currently-loaded game world. A
// map change invalidates every in-progress sound and detaches the
// listener's tracked object, since both refer to geometry that no
// longer exists (spec §3 "Stage").
type WorldStage struct {
	*Stage
}

// NewWorldStage wraps a freshly-created Stage.
func NewWorldStage(s *Stage) *WorldStage {
	return &WorldStage{Stage: s}
}

// HandleMapChange clears every in-progress sound and stops tracking the
// previous map's object, called by the world-loading collaborator right
// before the new map's geometry replaces the old one.
func (w *WorldStage) HandleMapChange() {
	w.RemoveAllSounds()
	w.SetTrackedObject(nil)
}
