package config

import (
	"strings"
	"testing"
	"time"
)

func TestParseArmConfig(t *testing.T) {
	cfg, err := ParseArmConfigString(sampleConfig)
	if err != nil {
		t.Fatalf("ParseArmConfigString: %v", err)
	}

	if cfg.Geometry.BaseHeight != 100 || cfg.Geometry.UpperArmLength != 204 || cfg.Geometry.ForearmLength != 165 {
		t.Errorf("geometry = %+v", cfg.Geometry)
	}
	if cfg.Port != "/dev/ttyUSB0" || cfg.Baud != 9600 {
		t.Errorf("serial = %q %d", cfg.Port, cfg.Baud)
	}
	if cfg.MinPulse != 600 || cfg.MaxPulse != 2400 {
		t.Errorf("pulse limits = %d %d", cfg.MinPulse, cfg.MaxPulse)
	}
	if cfg.ConnectTimeout != 2*time.Second {
		t.Errorf("connect timeout = %v", cfg.ConnectTimeout)
	}
	if cfg.ListenAddr != ":8137" || cfg.UpdateRate != 30 {
		t.Errorf("server = %q %f", cfg.ListenAddr, cfg.UpdateRate)
	}

	if len(cfg.Servos) != 3 {
		t.Fatalf("servos = %v", cfg.Servos)
	}
	shoulder := cfg.Servos["shoulder"]
	if shoulder.Channel != 1 || !shoulder.Invert {
		t.Errorf("shoulder servo = %+v", shoulder)
	}
	// Unset per-servo pulse limits inherit the board limits.
	if shoulder.PulseMin != 600 || shoulder.PulseMax != 2400 {
		t.Errorf("shoulder pulses = %d %d", shoulder.PulseMin, shoulder.PulseMax)
	}
	elbow := cfg.Servos["elbow"]
	if elbow.AngleMin != 0 || elbow.AngleMax != 180 {
		t.Errorf("elbow angles = %f %f", elbow.AngleMin, elbow.AngleMax)
	}
}

func TestParseArmConfigNoHardware(t *testing.T) {
	// Geometry-only config for the simulator: no serial, no servos.
	cfg, err := ParseArmConfigString(`
[arm]
base_height: 100
upper_arm_length: 204
forearm_length: 165
`)
	if err != nil {
		t.Fatalf("ParseArmConfigString: %v", err)
	}
	if cfg.Port != "" {
		t.Errorf("port = %q, expected none", cfg.Port)
	}
	if cfg.UpdateRate != 20 {
		t.Errorf("default update_rate = %f, expected 20", cfg.UpdateRate)
	}
}

func TestParseArmConfigErrors(t *testing.T) {
	cases := []struct {
		name string
		cfg  string
		want string
	}{
		{
			"missing arm section",
			"[ssc32u]\nport: /dev/ttyUSB0\n",
			"section not found",
		},
		{
			"negative link length",
			"[arm]\nbase_height: 100\nupper_arm_length: -204\nforearm_length: 165\n",
			"must be above",
		},
		{
			"channel out of range",
			sampleArm + "[servo base]\nchannel: 32\n",
			"maximum of 31",
		},
		{
			"unknown joint",
			sampleArm + "[servo wrist]\nchannel: 3\n",
			"unknown joint",
		},
		{
			"inverted pulse limits",
			sampleArm + "[ssc32u]\nport: /dev/ttyUSB0\nmin_pulse: 2400\nmax_pulse: 600\n",
			"min_pulse must be below max_pulse",
		},
		{
			"missing servo with port",
			sampleArm + "[ssc32u]\nport: /dev/ttyUSB0\n",
			"required when a port is configured",
		},
		{
			"unused option",
			sampleArm + "[arm]\ntypo_option: 42\n",
			"unused options",
		},
	}
	for _, tc := range cases {
		_, err := ParseArmConfigString(tc.cfg)
		if err == nil {
			t.Errorf("%s: expected error", tc.name)
			continue
		}
		if !strings.Contains(err.Error(), tc.want) {
			t.Errorf("%s: error %q does not mention %q", tc.name, err, tc.want)
		}
	}
}

const sampleArm = `
[arm]
base_height: 100
upper_arm_length: 204
forearm_length: 165
`
