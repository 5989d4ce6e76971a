package listener

import "math"

// Vec3 is a minimal 3D vector: the Listener and Stage only need distance,
// angle, and zero-check, not a full linear-algebra dependency.
type Vec3 struct {
	X, Y, Z float64
}

// IsZero reports whether v is the zero vector.
func (v Vec3) IsZero() bool {
	return v.X == 0 && v.Y == 0 && v.Z == 0
}

// Sub returns v - o.
func (v Vec3) Sub(o Vec3) Vec3 {
	return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z}
}

// Length returns the Euclidean length of v.
func (v Vec3) Length() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// DistanceTo returns the Euclidean distance between v and o.
func (v Vec3) DistanceTo(o Vec3) float64 {
	return v.Sub(o).Length()
}

// AngleDegFromTo returns the yaw angle in degrees, in [0, 360), from point
// origin to point target, projected onto the XY plane.
func AngleDegFromTo(origin, target Vec3) float64 {
	d := target.Sub(origin)
	angle := math.Atan2(d.Y, d.X) * 180 / math.Pi
	if angle < 0 {
		angle += 360
	}
	return angle
}
