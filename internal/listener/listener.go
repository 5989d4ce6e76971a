// Package listener implements the point of view 3D audio is computed from:
// position/velocity/orientation derived from a tracked world object,
// environment recomputation, and the angle/distance/priority utilities
// the channel-selection algorithm depends on (spec §4.3).
package listener

import "sync"

// TICKRATE is the game's logical tick rate; only the priority decay term
// is expressed in ticks (spec §9 "Unify: Sound lifetimes in ms, priority
// decay in ticks").
const TICKRATE = 35

// SoundFlags mirror the logical Sound flags relevant to priority rating.
type SoundFlags uint8

const (
	FlagNoOrigin SoundFlags = 1 << iota
	FlagNoVolumeAttenuation
	FlagRepeat
)

// Environment is the sector-environment record the world-geometry
// collaborator supplies on change (spec §1 "out of scope": BSP/sector
// computation; the Listener only consumes the result).
type Environment struct {
	Volume  float64
	Decay   float64
	Damping float64
}

// WorldObjectRef is the external collaborator a Listener tracks: a
// game-world object with position, velocity, facing, and the environment
// record for the sector currently containing it.
type WorldObjectRef interface {
	Position() Vec3
	Velocity() Vec3
	YawPitch() (yawDeg, pitchDeg float64)
	EyeHeight() float64
	SectorEnvironment() Environment
}

// Listener is the logical point of view for 3D attenuation and panning.
// One Listener belongs to exactly one Stage (spec §3).
type Listener struct {
	mu sync.Mutex

	tracked        WorldObjectRef
	useEnv         bool
	currentEnv     Environment
	reverbStrength float64

	near, far float64

	onEnvChange []func(Environment)
}

// New creates a Listener with the given audible attenuation range.
// Invariant: far > near >= 0 (spec §3).
func New(near, far float64) *Listener {
	if near < 0 {
		near = 0
	}
	if far <= near {
		far = near + 1
	}
	return &Listener{near: near, far: far, reverbStrength: 1.0}
}

// SetTrackedObject changes which world object the listener follows.
// Passing nil clears tracking; position/velocity/orientation then report
// the zero vector (spec §3 invariant).
func (l *Listener) SetTrackedObject(obj WorldObjectRef) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tracked = obj
	l.recomputeEnvironmentLocked()
}

// UseEnvironment toggles whether the listener subscribes to its sector's
// environment. Notifies EnvironmentChange if the effective environment
// changes as a result (spec §4.3).
func (l *Listener) UseEnvironment(enable bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.useEnv = enable
	l.recomputeEnvironmentLocked()
}

// UsesEnvironment reports whether environment tracking is enabled.
func (l *Listener) UsesEnvironment() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.useEnv
}

// SetReverbStrength sets the global reverb cvar multiplier (0.0-1.5,
// spec §4.3, §6 "sound-reverb-volume").
func (l *Listener) SetReverbStrength(v float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reverbStrength = v
	l.recomputeEnvironmentLocked()
}

// NotifySectorEnvironmentChanged is called by the world-geometry
// collaborator when the containing sector's environment record changes.
func (l *Listener) NotifySectorEnvironmentChanged() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.recomputeEnvironmentLocked()
}

// recomputeEnvironmentLocked applies the reverb-strength multiplier to the
// tracked object's sector environment and notifies the audience exactly
// once per effective change. Caller must hold l.mu.
func (l *Listener) recomputeEnvironmentLocked() {
	var next Environment
	if l.useEnv && l.tracked != nil {
		next = l.tracked.SectorEnvironment()
		next.Volume *= l.reverbStrength
	}

	if next == l.currentEnv {
		return
	}
	l.currentEnv = next

	for _, fn := range l.onEnvChange {
		fn(next)
	}
}

// OnEnvironmentChange subscribes fn to the EnvironmentChange audience.
func (l *Listener) OnEnvironmentChange(fn func(Environment)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onEnvChange = append(l.onEnvChange, fn)
}

// CurrentEnvironment returns the last computed effective environment.
func (l *Listener) CurrentEnvironment() Environment {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.currentEnv
}

// AttenuationRange returns the (near, far) attenuation distances.
func (l *Listener) AttenuationRange() (near, far float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.near, l.far
}

// Position returns the tracked object's eye position, or the zero vector
// if nothing is tracked (spec §3 invariant).
func (l *Listener) Position() Vec3 {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.tracked == nil {
		return Vec3{}
	}
	p := l.tracked.Position()
	p.Z += l.tracked.EyeHeight()
	return p
}

// Velocity returns the tracked object's velocity, or the zero vector.
func (l *Listener) Velocity() Vec3 {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.tracked == nil {
		return Vec3{}
	}
	return l.tracked.Velocity()
}

// Orientation returns the tracked object's yaw/pitch in degrees, or
// (0, 0) if nothing is tracked.
func (l *Listener) Orientation() (yawDeg, pitchDeg float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.tracked == nil {
		return 0, 0
	}
	return l.tracked.YawPitch()
}

// AngleFrom returns the yaw angle in degrees, in [0, 360), from the
// listener's position to point.
func (l *Listener) AngleFrom(point Vec3) float64 {
	return AngleDegFromTo(l.Position(), point)
}

// DistanceFrom returns the Euclidean distance from the listener's position
// to point.
func (l *Listener) DistanceFrom(point Vec3) float64 {
	return l.Position().DistanceTo(point)
}

// InAudibleRangeOf reports whether point lies within the listener's
// attenuation range.
func (l *Listener) InAudibleRangeOf(point Vec3) bool {
	_, far := l.AttenuationRange()
	return l.DistanceFrom(point) <= far
}

// RateSoundPriority implements the priority formula of spec §4.3:
//
//	priority = 1000*volume - distance/2 - 1000*(nowTick-startTick)/(5*TICKRATE)
//
// The distance term is dropped for origin-less sounds (FlagNoOrigin) or
// when the listener has no tracked object.
func (l *Listener) RateSoundPriority(startTick, nowTick int64, volume float64, flags SoundFlags, origin Vec3) float64 {
	priority := 1000 * volume

	l.mu.Lock()
	hasTracked := l.tracked != nil
	l.mu.Unlock()

	if flags&FlagNoOrigin == 0 && hasTracked {
		priority -= l.DistanceFrom(origin) / 2
	}

	age := nowTick - startTick
	priority -= 1000 * float64(age) / float64(5*TICKRATE)

	return priority
}
