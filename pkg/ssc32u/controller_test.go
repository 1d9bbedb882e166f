package ssc32u

import (
	"bytes"
	"strings"
	"testing"

	"armhost/pkg/errors"
	"armhost/pkg/kinematics"
)

// fakeLink records writes and serves canned reads, standing in for the
// serial port.
type fakeLink struct {
	wrote  bytes.Buffer
	reads  bytes.Buffer
	closed bool
}

func (f *fakeLink) Write(p []byte) (int, error) { return f.wrote.Write(p) }
func (f *fakeLink) Read(p []byte) (int, error)  { return f.reads.Read(p) }
func (f *fakeLink) Close() error                { f.closed = true; return nil }

func newTestController() (*Controller, *fakeLink) {
	c := New(Config{})
	link := &fakeLink{}
	c.Attach(link)
	return c, link
}

func TestMoveServo(t *testing.T) {
	c, link := newTestController()

	if err := c.MoveServo(0, 1500, MoveOptions{}); err != nil {
		t.Fatalf("MoveServo: %v", err)
	}
	if got := link.wrote.String(); got != "#0P1500\r" {
		t.Errorf("wrote %q, expected %q", got, "#0P1500\r")
	}
	if got := c.LastCommand(); got != "#0P1500" {
		t.Errorf("LastCommand = %q", got)
	}
}

func TestMoveServoModifiers(t *testing.T) {
	c, link := newTestController()

	if err := c.MoveServo(5, 2000, MoveOptions{Speed: 750}); err != nil {
		t.Fatalf("MoveServo: %v", err)
	}
	if got := link.wrote.String(); got != "#5P2000S750\r" {
		t.Errorf("wrote %q", got)
	}

	link.wrote.Reset()
	if err := c.MoveServo(5, 2000, MoveOptions{Time: 1200}); err != nil {
		t.Fatalf("MoveServo: %v", err)
	}
	if got := link.wrote.String(); got != "#5P2000T1200\r" {
		t.Errorf("wrote %q", got)
	}
}

func TestMoveServoValidation(t *testing.T) {
	c, _ := newTestController()

	if err := c.MoveServo(32, 1500, MoveOptions{}); !errors.Is(err, errors.ErrServoChannel) {
		t.Errorf("channel 32: got %v, expected SERVO_CHANNEL", err)
	}
	if err := c.MoveServo(-1, 1500, MoveOptions{}); !errors.Is(err, errors.ErrServoChannel) {
		t.Errorf("channel -1: got %v, expected SERVO_CHANNEL", err)
	}
	// Default limits are 600-2400.
	if err := c.MoveServo(0, 500, MoveOptions{}); !errors.Is(err, errors.ErrServoPulse) {
		t.Errorf("pulse 500: got %v, expected SERVO_PULSE", err)
	}
	if err := c.MoveServo(0, 2500, MoveOptions{}); !errors.Is(err, errors.ErrServoPulse) {
		t.Errorf("pulse 2500: got %v, expected SERVO_PULSE", err)
	}
}

func TestMoveServoNotConnected(t *testing.T) {
	c := New(Config{})
	if err := c.MoveServo(0, 1500, MoveOptions{}); !errors.Is(err, errors.ErrServoNotConnected) {
		t.Errorf("got %v, expected SERVO_NOT_CONNECTED", err)
	}
}

func TestMoveServosGroup(t *testing.T) {
	c, link := newTestController()

	moves := []ServoMove{
		{Channel: 0, Pulse: 1500},
		{Channel: 1, Pulse: 1800},
		{Channel: 2, Pulse: 900},
	}
	if err := c.MoveServos(moves, MoveOptions{Time: 2000}); err != nil {
		t.Fatalf("MoveServos: %v", err)
	}
	want := "#0P1500#1P1800#2P900T2000\r"
	if got := link.wrote.String(); got != want {
		t.Errorf("wrote %q, expected %q", got, want)
	}
}

func TestMoveServosEmpty(t *testing.T) {
	c, link := newTestController()
	if err := c.MoveServos(nil, MoveOptions{}); err != nil {
		t.Fatalf("MoveServos(nil): %v", err)
	}
	if link.wrote.Len() != 0 {
		t.Error("empty group move should send nothing")
	}
}

func TestMoveServosRejectsBadMember(t *testing.T) {
	c, link := newTestController()
	moves := []ServoMove{
		{Channel: 0, Pulse: 1500},
		{Channel: 1, Pulse: 9999},
	}
	if err := c.MoveServos(moves, MoveOptions{}); !errors.Is(err, errors.ErrServoPulse) {
		t.Errorf("got %v, expected SERVO_PULSE", err)
	}
	// Nothing partial goes out on the wire.
	if link.wrote.Len() != 0 {
		t.Errorf("rejected group move wrote %q", link.wrote.String())
	}
}

func TestQueryMovementStatus(t *testing.T) {
	c, link := newTestController()

	link.reads.WriteByte('+')
	moving, err := c.QueryMovementStatus()
	if err != nil {
		t.Fatalf("QueryMovementStatus: %v", err)
	}
	if !moving {
		t.Error("'+' should report moving")
	}
	if !strings.HasPrefix(link.wrote.String(), "Q\r") {
		t.Errorf("wrote %q, expected Q command", link.wrote.String())
	}

	link.reads.WriteByte('.')
	moving, err = c.QueryMovementStatus()
	if err != nil {
		t.Fatalf("QueryMovementStatus: %v", err)
	}
	if moving {
		t.Error("'.' should report idle")
	}
}

func TestQueryPulseWidth(t *testing.T) {
	c, link := newTestController()

	// The board reports pulse/10 in one byte.
	link.reads.WriteByte(150)
	pulse, err := c.QueryPulseWidth(3)
	if err != nil {
		t.Fatalf("QueryPulseWidth: %v", err)
	}
	if pulse != 1500 {
		t.Errorf("pulse = %d, expected 1500", pulse)
	}
	if got := link.wrote.String(); got != "QP3\r" {
		t.Errorf("wrote %q, expected %q", got, "QP3\r")
	}

	if _, err := c.QueryPulseWidth(40); !errors.Is(err, errors.ErrServoChannel) {
		t.Errorf("channel 40: got %v, expected SERVO_CHANNEL", err)
	}
}

func TestDisconnect(t *testing.T) {
	c, link := newTestController()

	if !c.Connected() {
		t.Fatal("controller should be connected after Attach")
	}
	if err := c.Disconnect(); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	if !link.closed {
		t.Error("link not closed")
	}
	if c.Connected() {
		t.Error("controller still connected after Disconnect")
	}
	// Idempotent.
	if err := c.Disconnect(); err != nil {
		t.Errorf("second Disconnect: %v", err)
	}
}

func TestConfigDefaults(t *testing.T) {
	c := New(Config{})
	if c.cfg.Baud != 9600 {
		t.Errorf("default baud = %d", c.cfg.Baud)
	}
	if c.cfg.MinPulse != DefaultMinPulse || c.cfg.MaxPulse != DefaultMaxPulse {
		t.Errorf("default pulse limits = [%d, %d]", c.cfg.MinPulse, c.cfg.MaxPulse)
	}
}

func TestPulseForAngle(t *testing.T) {
	s := Servo{Channel: 0, AngleMin: -90, AngleMax: 90, PulseMin: 600, PulseMax: 2400}

	cases := []struct {
		deg  float64
		want int
	}{
		{-90, 600},
		{0, 1500},
		{90, 2400},
		{45, 1950},
		// Out-of-travel angles clamp to the limits.
		{-120, 600},
		{150, 2400},
	}
	for _, c := range cases {
		if got := s.PulseForAngle(c.deg); got != c.want {
			t.Errorf("PulseForAngle(%g) = %d, expected %d", c.deg, got, c.want)
		}
	}
}

func TestPulseForAngleInverted(t *testing.T) {
	s := Servo{AngleMin: -90, AngleMax: 90, PulseMin: 600, PulseMax: 2400, Invert: true}

	if got := s.PulseForAngle(-90); got != 2400 {
		t.Errorf("inverted PulseForAngle(-90) = %d, expected 2400", got)
	}
	if got := s.PulseForAngle(90); got != 600 {
		t.Errorf("inverted PulseForAngle(90) = %d, expected 600", got)
	}
	if got := s.PulseForAngle(0); got != 1500 {
		t.Errorf("inverted PulseForAngle(0) = %d, expected 1500", got)
	}
}

func TestArmMove(t *testing.T) {
	c, link := newTestController()

	arm := NewArm(c,
		Servo{Channel: 0, AngleMin: -90, AngleMax: 90, PulseMin: 600, PulseMax: 2400},
		Servo{Channel: 1, AngleMin: 0, AngleMax: 180, PulseMin: 600, PulseMax: 2400},
		Servo{Channel: 2, AngleMin: 0, AngleMax: 180, PulseMin: 600, PulseMax: 2400},
	)

	angles := kinematics.JointAngles{Base: 0, Shoulder: 90, Elbow: 0}
	if err := arm.Move(angles, MoveOptions{Time: 1000}); err != nil {
		t.Fatalf("Move: %v", err)
	}
	want := "#0P1500#1P1500#2P600T1000\r"
	if got := link.wrote.String(); got != want {
		t.Errorf("wrote %q, expected %q", got, want)
	}
}
