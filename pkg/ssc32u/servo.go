package ssc32u

import (
	"math"

	"armhost/pkg/kinematics"
)

// Servo describes one servo's channel and its angle-to-pulse calibration.
type Servo struct {
	// Channel is the board channel (0-31).
	Channel int

	// AngleMin/AngleMax bound the joint angle in degrees.
	AngleMin float64
	AngleMax float64

	// PulseMin/PulseMax are the pulse widths in microseconds that
	// correspond to AngleMin and AngleMax.
	PulseMin int
	PulseMax int

	// Invert flips the direction of travel for servos mounted mirrored.
	Invert bool
}

// PulseForAngle maps a joint angle in degrees to a pulse width in
// microseconds. Angles outside the servo's travel are clamped to the
// nearest limit rather than rejected, since the solver works in the
// arm's full workspace but a given servo may not cover all of it.
func (s Servo) PulseForAngle(deg float64) int {
	if deg < s.AngleMin {
		deg = s.AngleMin
	} else if deg > s.AngleMax {
		deg = s.AngleMax
	}

	span := s.AngleMax - s.AngleMin
	var frac float64
	if span != 0 {
		frac = (deg - s.AngleMin) / span
	}
	if s.Invert {
		frac = 1 - frac
	}
	pulse := float64(s.PulseMin) + frac*float64(s.PulseMax-s.PulseMin)
	return int(math.Round(pulse))
}

// Arm maps the three arm joints onto board channels.
type Arm struct {
	Base     Servo
	Shoulder Servo
	Elbow    Servo

	ctrl *Controller
}

// NewArm binds three joint servos to a controller.
func NewArm(ctrl *Controller, base, shoulder, elbow Servo) *Arm {
	return &Arm{Base: base, Shoulder: shoulder, Elbow: elbow, ctrl: ctrl}
}

// Moves converts joint angles to the per-channel pulse commands for a
// group move.
func (a *Arm) Moves(angles kinematics.JointAngles) []ServoMove {
	return []ServoMove{
		{Channel: a.Base.Channel, Pulse: a.Base.PulseForAngle(angles.Base)},
		{Channel: a.Shoulder.Channel, Pulse: a.Shoulder.PulseForAngle(angles.Shoulder)},
		{Channel: a.Elbow.Channel, Pulse: a.Elbow.PulseForAngle(angles.Elbow)},
	}
}

// Move commands all three joints in one coordinated group move.
func (a *Arm) Move(angles kinematics.JointAngles, opts MoveOptions) error {
	return a.ctrl.MoveServos(a.Moves(angles), opts)
}
