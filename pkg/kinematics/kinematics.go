// Package kinematics provides the closed-form inverse kinematics for a
// 3-DOF serial arm: a rotating base, an upper arm link, and a forearm link.
package kinematics

import (
	"fmt"
	"math"
)

// reachEpsilon absorbs floating error when comparing a target distance
// against the arm's maximum reach. Absolute, not scaled: link lengths in
// this system are millimetres in the hundreds, where 1e-3 is well below
// servo resolution.
const reachEpsilon = 0.001

// Point is a position in the arm's base frame (origin at the base mount,
// Z up through the rotation axis).
type Point struct {
	X float64
	Y float64
	Z float64
}

// Sub returns p - q.
func (p Point) Sub(q Point) Point {
	return Point{p.X - q.X, p.Y - q.Y, p.Z - q.Z}
}

// Norm returns the euclidean length of p treated as a vector.
func (p Point) Norm() float64 {
	return math.Sqrt(p.X*p.X + p.Y*p.Y + p.Z*p.Z)
}

// Geometry holds the fixed link lengths of the arm. All lengths share one
// unit (the solver is unit-agnostic).
type Geometry struct {
	// BaseHeight is the height of the shoulder joint above the origin.
	BaseHeight float64

	// UpperArmLength is the shoulder-to-elbow link length.
	UpperArmLength float64

	// ForearmLength is the elbow-to-effector link length.
	ForearmLength float64
}

// Validate checks that all link lengths are positive.
// Used when loading configuration; the solvers themselves accept any
// geometry and never fail.
func (g Geometry) Validate() error {
	if g.BaseHeight <= 0 {
		return fmt.Errorf("base_height must be positive")
	}
	if g.UpperArmLength <= 0 {
		return fmt.Errorf("upper_arm_length must be positive")
	}
	if g.ForearmLength <= 0 {
		return fmt.Errorf("forearm_length must be positive")
	}
	return nil
}

// Reach returns the maximum distance from the shoulder joint at which the
// effector can be placed.
func (g Geometry) Reach() float64 {
	return g.UpperArmLength + g.ForearmLength
}

// ShoulderJoint returns the position of the shoulder joint.
func (g Geometry) ShoulderJoint() Point {
	return Point{0, 0, g.BaseHeight}
}

// JointAngles is one arm pose in joint space. All angles are in degrees:
// Base is the rotation about the vertical axis, Shoulder the elevation of
// the upper arm, Elbow the flexion between upper arm and forearm.
type JointAngles struct {
	Base     float64
	Shoulder float64
	Elbow    float64
}

// Reachable reports whether the target is within the arm's reach. It uses
// the same distance formula as the solvers, so callers that need a hard
// in/out-of-range decision stay consistent with the solver's internal
// reach handling.
func Reachable(target Point, g Geometry) bool {
	return target.Sub(g.ShoulderJoint()).Norm() <= g.Reach()
}

// clamp limits v to [lo, hi]. The solvers clamp every inverse-trig
// argument so that floating error can never push it out of domain.
func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// degrees converts radians to degrees.
func degrees(rad float64) float64 {
	return rad * 180.0 / math.Pi
}

// radians converts degrees to radians.
func radians(deg float64) float64 {
	return deg * math.Pi / 180.0
}
