package kinematics

import "math"

// Forward computes the elbow and effector positions for a joint-space
// pose. It is the inverse of SolveAngles and exists for consumers that
// render or check the arm: each link contributes an in-plane (radial,
// vertical) offset at its elevation, rotated about the vertical axis by
// the base angle.
//
// Elbow is flexion (0 when the arm is straight) and the elbow-up
// convention bends the forearm downward relative to the upper arm, so
// the forearm's elevation is shoulder - elbow.
func Forward(a JointAngles, g Geometry) (elbow, effector Point) {
	base := radians(a.Base)
	shoulder := radians(a.Shoulder)
	forearm := radians(a.Shoulder - a.Elbow)

	// In-plane (radial, vertical) offsets of each link.
	upperR := g.UpperArmLength * math.Cos(shoulder)
	upperZ := g.UpperArmLength * math.Sin(shoulder)
	foreR := g.ForearmLength * math.Cos(forearm)
	foreZ := g.ForearmLength * math.Sin(forearm)

	cosB, sinB := math.Cos(base), math.Sin(base)

	elbow = Point{
		X: upperR * cosB,
		Y: upperR * sinB,
		Z: g.BaseHeight + upperZ,
	}
	effector = Point{
		X: (upperR + foreR) * cosB,
		Y: (upperR + foreR) * sinB,
		Z: g.BaseHeight + upperZ + foreZ,
	}
	return elbow, effector
}
