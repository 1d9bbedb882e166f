package config

import (
	"fmt"
	"time"

	"armhost/pkg/kinematics"
)

// Servo channel range on the SSC-32U board.
var (
	servoChannelMin = 0
	servoChannelMax = 31
)

// ServoConfig describes one servo: its board channel and the linear
// mapping from joint angle to pulse width.
type ServoConfig struct {
	Name     string
	Channel  int
	AngleMin float64 // degrees at PulseMin
	AngleMax float64 // degrees at PulseMax
	PulseMin int     // microseconds
	PulseMax int     // microseconds
	Invert   bool    // reverse the angle-to-pulse direction
}

// ArmConfig is the fully parsed and validated host configuration.
type ArmConfig struct {
	// Geometry holds the arm link lengths from the [arm] section.
	Geometry kinematics.Geometry

	// Serial link to the SSC-32U board.
	Port           string
	Baud           int
	ConnectTimeout time.Duration

	// Board-wide pulse limits applied to every channel.
	MinPulse int
	MaxPulse int

	// Servos maps joint name (base, shoulder, elbow) to its servo.
	Servos map[string]*ServoConfig

	// ListenAddr is the state server bind address ("" disables it).
	ListenAddr string

	// UpdateRate is the solve/publish frequency in Hz.
	UpdateRate float64
}

// jointNames are the joints an arm config must describe.
var jointNames = []string{"base", "shoulder", "elbow"}

// ParseArmConfig loads and validates the host configuration file.
func ParseArmConfig(path string) (*ArmConfig, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	return buildArmConfig(c)
}

// ParseArmConfigString parses a config from a string (tests, embedded
// defaults).
func ParseArmConfigString(data string) (*ArmConfig, error) {
	c, err := LoadString(data)
	if err != nil {
		return nil, err
	}
	return buildArmConfig(c)
}

func buildArmConfig(c *Config) (*ArmConfig, error) {
	cfg := &ArmConfig{Servos: make(map[string]*ServoConfig)}

	arm, err := c.GetSection("arm")
	if err != nil {
		return nil, err
	}
	zero := 0.0
	if cfg.Geometry.BaseHeight, err = arm.GetFloatWithBounds("base_height", FloatBounds{Above: &zero}); err != nil {
		return nil, err
	}
	if cfg.Geometry.UpperArmLength, err = arm.GetFloatWithBounds("upper_arm_length", FloatBounds{Above: &zero}); err != nil {
		return nil, err
	}
	if cfg.Geometry.ForearmLength, err = arm.GetFloatWithBounds("forearm_length", FloatBounds{Above: &zero}); err != nil {
		return nil, err
	}
	if err := cfg.Geometry.Validate(); err != nil {
		return nil, NewConfigError("arm", "", err.Error())
	}

	board := c.GetSectionOptional("ssc32u")
	if board != nil {
		if cfg.Port, err = board.Get("port", ""); err != nil {
			return nil, err
		}
		if cfg.Baud, err = board.GetInt("baud", 9600); err != nil {
			return nil, err
		}
		// Defaults narrowed from the board's 500-2500 hardware range:
		// several common servos buzz at the extremes.
		if cfg.MinPulse, err = board.GetInt("min_pulse", 600); err != nil {
			return nil, err
		}
		if cfg.MaxPulse, err = board.GetInt("max_pulse", 2400); err != nil {
			return nil, err
		}
		if cfg.MinPulse >= cfg.MaxPulse {
			return nil, NewConfigError("ssc32u", "min_pulse", "min_pulse must be below max_pulse")
		}
		timeoutSec, err := board.GetFloat("connect_timeout", 2.0)
		if err != nil {
			return nil, err
		}
		cfg.ConnectTimeout = time.Duration(timeoutSec * float64(time.Second))
	} else {
		cfg.Baud = 9600
		cfg.MinPulse = 600
		cfg.MaxPulse = 2400
		cfg.ConnectTimeout = 2 * time.Second
	}

	for _, sec := range c.GetPrefixSections("servo ") {
		servo, err := parseServo(sec, cfg.MinPulse, cfg.MaxPulse)
		if err != nil {
			return nil, err
		}
		if _, dup := cfg.Servos[servo.Name]; dup {
			return nil, NewConfigError(sec.GetName(), "", "duplicate servo section")
		}
		cfg.Servos[servo.Name] = servo
	}
	for _, joint := range jointNames {
		if _, ok := cfg.Servos[joint]; !ok && cfg.Port != "" {
			return nil, NewConfigError("servo "+joint, "", "section required when a port is configured")
		}
	}

	server := c.GetSectionOptional("state_server")
	if server != nil {
		if cfg.ListenAddr, err = server.Get("listen", ":8137"); err != nil {
			return nil, err
		}
		zeroF := 0.0
		if cfg.UpdateRate, err = server.GetFloatWithBounds("update_rate", FloatBounds{Above: &zeroF}, 20); err != nil {
			return nil, err
		}
	} else {
		cfg.UpdateRate = 20
	}

	if err := c.CheckUnusedOptions(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parseServo parses one "servo <name>" section.
func parseServo(sec *Section, minPulse, maxPulse int) (*ServoConfig, error) {
	name := sec.GetName()[len("servo "):]
	valid := false
	for _, joint := range jointNames {
		if name == joint {
			valid = true
		}
	}
	if !valid {
		return nil, NewConfigError(sec.GetName(), "", fmt.Sprintf("unknown joint '%s' (valid: %v)", name, jointNames))
	}

	servo := &ServoConfig{Name: name}
	var err error
	if servo.Channel, err = sec.GetIntWithBounds("channel", &servoChannelMin, &servoChannelMax); err != nil {
		return nil, err
	}
	if servo.AngleMin, err = sec.GetFloat("angle_min", -90); err != nil {
		return nil, err
	}
	if servo.AngleMax, err = sec.GetFloat("angle_max", 90); err != nil {
		return nil, err
	}
	if servo.AngleMin >= servo.AngleMax {
		return nil, NewConfigError(sec.GetName(), "angle_min", "angle_min must be below angle_max")
	}
	if servo.PulseMin, err = sec.GetIntWithBounds("pulse_min", &minPulse, &maxPulse, minPulse); err != nil {
		return nil, err
	}
	if servo.PulseMax, err = sec.GetIntWithBounds("pulse_max", &minPulse, &maxPulse, maxPulse); err != nil {
		return nil, err
	}
	if servo.PulseMin >= servo.PulseMax {
		return nil, NewConfigError(sec.GetName(), "pulse_min", "pulse_min must be below pulse_max")
	}
	if servo.Invert, err = sec.GetBool("invert", false); err != nil {
		return nil, err
	}
	return servo, nil
}
