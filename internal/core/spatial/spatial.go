// Package spatial holds the small amount of geometry the tracker needs:
// ground-plane coordinates, the fixed surface-to-world tilt and quarter-turn angles.
package spatial

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// QuarterTurn is one 90 degree turn in radians.
const QuarterTurn = math.Pi / 2

// Vec2 is a point on a surface's ground plane. Y is implicitly 0.
type Vec2 struct {
	X float64 `json:"x"`
	Z float64 `json:"z"`
}

// Extent is the size of a detected plane along its local x and z axes.
type Extent struct {
	Width float64 `json:"width"`
	Depth float64 `json:"depth"`
}

// surfaceTilt lays a renderer's intrinsic width/height plane onto the world's x-z plane.
var surfaceTilt = r3.NewRotation(-QuarterTurn, r3.Vec{X: 1})

// Transform is a rigid local-to-world placement. Rotation is a row-major 3x3 matrix.
type Transform struct {
	Translation r3.Vec
	Rotation    [9]float64
}

// SurfaceTransform returns the placement of a surface grid centred at center.
func SurfaceTransform(center Vec2) Transform {
	t := Transform{Translation: r3.Vec{X: center.X, Y: 0, Z: center.Z}}
	basis := [3]r3.Vec{{X: 1}, {Y: 1}, {Z: 1}}
	for col, e := range basis {
		v := surfaceTilt.Rotate(e)
		t.Rotation[0*3+col] = clean(v.X)
		t.Rotation[1*3+col] = clean(v.Y)
		t.Rotation[2*3+col] = clean(v.Z)
	}
	return t
}

// Apply maps a point from local to world coordinates.
func (t Transform) Apply(p r3.Vec) r3.Vec {
	m := t.Rotation
	rotated := r3.Vec{
		X: m[0]*p.X + m[1]*p.Y + m[2]*p.Z,
		Y: m[3]*p.X + m[4]*p.Y + m[5]*p.Z,
		Z: m[6]*p.X + m[7]*p.Y + m[8]*p.Z,
	}
	return r3.Add(rotated, t.Translation)
}

// QuarterTurns converts a turn count into radians.
func QuarterTurns(n int) float64 {
	return float64(n) * QuarterTurn
}

// Lift raises a point by h along the world up axis.
func Lift(p r3.Vec, h float64) r3.Vec {
	return r3.Add(p, r3.Vec{Y: h})
}

// Finite reports whether every component of p is a real number.
func Finite(p r3.Vec) bool {
	return isFinite(p.X) && isFinite(p.Y) && isFinite(p.Z)
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// FiniteScalar reports whether f is neither NaN nor infinite.
func FiniteScalar(f float64) bool {
	return isFinite(f)
}

// clean snaps floating point noise from the quaternion rotation to exact values.
func clean(f float64) float64 {
	const eps = 1e-12
	switch {
	case math.Abs(f) < eps:
		return 0
	case math.Abs(f-1) < eps:
		return 1
	case math.Abs(f+1) < eps:
		return -1
	}
	return f
}
