package stateserver

import (
	"math"
	"sync"

	"armhost/pkg/kinematics"
	"armhost/pkg/log"
)

// Vec is a cartesian position in the wire format.
type Vec struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Point converts the wire format to the solver's point type.
func (v Vec) Point() kinematics.Point {
	return kinematics.Point{X: v.X, Y: v.Y, Z: v.Z}
}

func vecFromPoint(p kinematics.Point) Vec {
	return Vec{X: p.X, Y: p.Y, Z: p.Z}
}

// Angles is the joint angle triple in the wire format, in degrees.
type Angles struct {
	Base     float64 `json:"base"`
	Shoulder float64 `json:"shoulder"`
	Elbow    float64 `json:"elbow"`
}

// State is the full arm state sent to clients.
type State struct {
	Target    Vec    `json:"target"`
	Angles    Angles `json:"angles"`
	Elbow     Vec    `json:"elbow"`
	Effector  Vec    `json:"effector"`
	Reachable bool   `json:"reachable"`
}

// MoveFunc commands the physical arm to a set of joint angles. A nil
// MoveFunc means no hardware is attached and targets only update the
// tracked state.
type MoveFunc func(kinematics.JointAngles) error

// ArmTracker solves targets and tracks the arm's last commanded state.
type ArmTracker struct {
	mu       sync.Mutex
	geometry kinematics.Geometry
	state    State
	move     MoveFunc
	logger   *log.Logger
}

// NewArmTracker creates a tracker for the given arm geometry.
func NewArmTracker(g kinematics.Geometry, move MoveFunc) *ArmTracker {
	return &ArmTracker{
		geometry: g,
		move:     move,
		logger:   log.GetLogger("arm"),
	}
}

// State returns the last solved state.
func (a *ArmTracker) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// MoveTo solves the target, commands the hardware when the target is in
// reach, and returns the new state. Out-of-reach targets still produce
// the solver's nearest-pose angles but are never sent to the hardware.
func (a *ArmTracker) MoveTo(target kinematics.Point) State {
	angles := kinematics.SolveAngles(target, a.geometry)
	elbow := kinematics.SolveElbowPosition(target, a.geometry, angles.Base*math.Pi/180)
	_, effector := kinematics.Forward(angles, a.geometry)
	reachable := kinematics.Reachable(target, a.geometry)

	state := State{
		Target:    vecFromPoint(target),
		Angles:    Angles{Base: angles.Base, Shoulder: angles.Shoulder, Elbow: angles.Elbow},
		Elbow:     vecFromPoint(elbow),
		Effector:  vecFromPoint(effector),
		Reachable: reachable,
	}

	a.mu.Lock()
	a.state = state
	move := a.move
	a.mu.Unlock()

	if reachable && move != nil {
		if err := move(angles); err != nil {
			a.logger.WithError(err).Error("move command failed")
		}
	}
	return state
}
