package serial

import (
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.BaudRate != 9600 {
		t.Errorf("default baud = %d, expected 9600", cfg.BaudRate)
	}
	if cfg.ReadTimeout != time.Second {
		t.Errorf("default read timeout = %v, expected 1s", cfg.ReadTimeout)
	}
	if !cfg.RTSOnConnect || !cfg.DTROnConnect {
		t.Error("RTS/DTR should default on")
	}
}

func TestBaudRateToSpeed(t *testing.T) {
	// All four SSC-32U jumper rates must map.
	for _, baud := range []int{2400, 9600, 38400, 115200} {
		if _, err := baudRateToSpeed(baud); err != nil {
			t.Errorf("baud %d: %v", baud, err)
		}
	}
	if _, err := baudRateToSpeed(250000); err == nil {
		t.Error("expected error for unsupported baud rate")
	}
}

func TestOpenValidation(t *testing.T) {
	if _, err := Open(Config{}); err == nil {
		t.Error("expected error for empty device path")
	}
	if _, err := Open(Config{Device: "/nonexistent/tty", BaudRate: 9600}); err == nil {
		t.Error("expected error for missing device")
	}
}

func TestIsDeviceAvailable(t *testing.T) {
	if IsDeviceAvailable("/nonexistent/tty") {
		t.Error("nonexistent device reported available")
	}
	// A regular file is not a character device.
	if IsDeviceAvailable("/etc/hostname") {
		t.Error("regular file reported available")
	}
}

func TestListPorts(t *testing.T) {
	// Must not error on supported platforms, regardless of attached
	// hardware.
	if _, err := ListPorts(); err != nil {
		t.Errorf("ListPorts: %v", err)
	}
}
