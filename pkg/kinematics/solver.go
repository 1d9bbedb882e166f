package kinematics

import "math"

// SolveAngles computes the joint angles placing the effector at target.
//
// The solution is closed-form: the base angle comes straight from the
// target's XY projection, the shoulder and elbow angles from the law of
// cosines on the shoulder-elbow-target triangle. The returned pose is the
// elbow-up branch.
//
// SolveAngles never fails. A target at or beyond maximum reach produces
// the fully extended arm pointing at the target (elbow 0); a target at the
// shoulder joint itself (d = 0) is resolved without dividing by zero.
func SolveAngles(target Point, g Geometry) JointAngles {
	x, y := target.X, target.Y
	dz := target.Z - g.BaseHeight
	d := math.Sqrt(x*x + y*y + dz*dz)

	// Base rotation. atan2 handles every quadrant; the x = 0 column is
	// special-cased so the origin projection resolves to ±90 by the sign
	// of y instead of atan2's arbitrary result at (0, 0).
	var base float64
	if x != 0 {
		base = math.Atan2(y, x)
	} else if y >= 0 {
		base = math.Pi / 2
	} else {
		base = -math.Pi / 2
	}

	var theta1, theta2 float64
	if d >= g.Reach()-reachEpsilon {
		// At or past maximum reach: straighten the arm and aim the
		// shoulder directly at the target.
		theta1 = math.Atan2(dz, math.Sqrt(x*x+y*y))
		theta2 = 0
	} else if d != 0 {
		theta1 = math.Asin(clamp(dz/d, -1, 1))
		cosTheta2 := (g.UpperArmLength*g.UpperArmLength + d*d - g.ForearmLength*g.ForearmLength) /
			(2 * g.UpperArmLength * d)
		theta2 = math.Acos(clamp(cosTheta2, -1, 1))
	}

	// Elbow flexion from the law of cosines on the full triangle,
	// independent of the reach branch above. The interior angle at the
	// elbow is 180 for a straight arm; flexion is its complement, so a
	// fully extended arm reads 0. At d >= reach the ratio clamps to -1
	// and the flexion comes out exactly 0.
	cosElbow := (g.UpperArmLength*g.UpperArmLength + g.ForearmLength*g.ForearmLength - d*d) /
		(2 * g.UpperArmLength * g.ForearmLength)
	elbow := math.Pi - math.Acos(clamp(cosElbow, -1, 1))

	return JointAngles{
		Base:     degrees(base),
		Shoulder: degrees(theta1 + theta2),
		Elbow:    degrees(elbow),
	}
}

// SolveElbowPosition computes the cartesian position of the elbow joint
// for the given target. baseAngleRad is the base rotation in radians and
// must be consistent with the target (SolveAngles' base angle, or
// atan2(y, x)).
//
// The elbow lies on two spheres at once: radius UpperArmLength around the
// shoulder joint and radius ForearmLength around the target. Subtracting
// the two sphere equations leaves one linear relation; substituting it
// back yields a quadratic in the elbow's Z coordinate. The larger root is
// taken, selecting the elbow-up configuration.
//
// SolveElbowPosition never fails: degenerate directions and unreachable
// targets fall back to defined approximations instead of erroring.
func SolveElbowPosition(target Point, g Geometry, baseAngleRad float64) Point {
	x, y, z := target.X, target.Y, target.Z
	base := g.BaseHeight
	upper := g.UpperArmLength

	// Half the constant term of the subtracted sphere equations.
	e := (x*x + y*y + z*z - base*base + upper*upper - g.ForearmLength*g.ForearmLength) / 2

	if x == 0 && y == 0 {
		// Target on the rotation axis: the elbow sits on the axis too,
		// clamped so it never projects past the target.
		return Point{0, 0, math.Min(base+upper, z)}
	}

	s := x + y*math.Tan(baseAngleRad)
	if s == 0 {
		// Target direction orthogonal to the in-plane axis: the linear
		// relation degenerates, pinning the elbow to the rotation axis.
		if z != base {
			return Point{0, 0, base + e/(z-base)}
		}
		return Point{0, 0, base + upper}
	}

	dz := z - base
	tanTerm := 1 + math.Tan(baseAngleRad)*math.Tan(baseAngleRad)

	a1 := (dz*dz*tanTerm)/(s*s) + 1
	b1 := 2 * ((e*dz*tanTerm)/(s*s) + base)
	c1 := (e*e*tanTerm)/(s*s) + base*base - upper*upper

	discriminant := b1*b1 - 4*a1*c1

	var ez float64
	if discriminant < 0 {
		// No exact sphere intersection (target past reach, or numeric
		// tolerance): place the elbow a fraction UpperArmLength/d along
		// the shoulder-to-target line.
		d := math.Sqrt(x*x + y*y + dz*dz)
		ez = base + upper*dz/d
	} else {
		ez = (b1 + math.Sqrt(discriminant)) / (2 * a1)
	}

	ex := (e - ez*dz) / s
	return Point{ex, ex * math.Tan(baseAngleRad), ez}
}
