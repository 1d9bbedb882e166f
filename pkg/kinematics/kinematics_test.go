package kinematics

import (
	"math"
	"testing"
)

// testGeometry matches the physical arm the host was built around.
var testGeometry = Geometry{
	BaseHeight:     100,
	UpperArmLength: 204,
	ForearmLength:  165,
}

func TestGeometryValidate(t *testing.T) {
	if err := testGeometry.Validate(); err != nil {
		t.Errorf("valid geometry rejected: %v", err)
	}

	bad := []Geometry{
		{BaseHeight: 0, UpperArmLength: 204, ForearmLength: 165},
		{BaseHeight: 100, UpperArmLength: -1, ForearmLength: 165},
		{BaseHeight: 100, UpperArmLength: 204, ForearmLength: 0},
	}
	for i, g := range bad {
		if err := g.Validate(); err == nil {
			t.Errorf("geometry %d: expected validation error, got nil", i)
		}
	}
}

func TestGeometryReach(t *testing.T) {
	if got := testGeometry.Reach(); got != 369 {
		t.Errorf("Reach() = %f, expected 369", got)
	}
	sj := testGeometry.ShoulderJoint()
	if sj.X != 0 || sj.Y != 0 || sj.Z != 100 {
		t.Errorf("ShoulderJoint() = %+v, expected (0, 0, 100)", sj)
	}
}

func TestReachable(t *testing.T) {
	cases := []struct {
		name   string
		target Point
		want   bool
	}{
		{"origin", Point{0, 0, 0}, true},
		{"close", Point{150, 0, 150}, true},
		{"max reach straight up", Point{0, 0, 469}, true},
		{"just past reach", Point{0, 0, 469.5}, false},
		{"far away", Point{1000, 1000, 1000}, false},
	}
	for _, tc := range cases {
		if got := Reachable(tc.target, testGeometry); got != tc.want {
			t.Errorf("%s: Reachable(%+v) = %v, expected %v", tc.name, tc.target, got, tc.want)
		}
	}
}

func TestPointOps(t *testing.T) {
	p := Point{3, 4, 12}
	if got := p.Norm(); math.Abs(got-13) > 1e-12 {
		t.Errorf("Norm() = %f, expected 13", got)
	}
	d := p.Sub(Point{1, 1, 1})
	if d.X != 2 || d.Y != 3 || d.Z != 11 {
		t.Errorf("Sub() = %+v, expected (2, 3, 11)", d)
	}
}
