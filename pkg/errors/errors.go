// Unified error handling for the arm host
//
// Copyright (C) 2026  Armhost Authors
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package errors

import "fmt"

// ErrorCode represents the category of error
type ErrorCode string

const (
	// Configuration errors
	ErrConfigSection    ErrorCode = "CONFIG_SECTION"
	ErrConfigOption     ErrorCode = "CONFIG_OPTION"
	ErrConfigValidation ErrorCode = "CONFIG_VALIDATION"
	ErrConfigType       ErrorCode = "CONFIG_TYPE"

	// Serial link errors
	ErrSerialOpen ErrorCode = "SERIAL_OPEN"
	ErrSerialIO   ErrorCode = "SERIAL_IO"

	// Servo board errors
	ErrServoChannel      ErrorCode = "SERVO_CHANNEL"
	ErrServoPulse        ErrorCode = "SERVO_PULSE"
	ErrServoNotConnected ErrorCode = "SERVO_NOT_CONNECTED"
)

// HostError is the unified error type for the host system.
// The kinematics core never produces one: the solver has no failure path,
// so every HostError originates in configuration or hardware I/O.
type HostError struct {
	// Code is the error category
	Code ErrorCode

	// Message is a human-readable error description
	Message string

	// Section is the config section or component context
	Section string

	// Option is the config option name (if applicable)
	Option string

	// Err wraps the underlying error
	Err error
}

// Error implements the error interface
func (e *HostError) Error() string {
	if e.Section != "" {
		return fmt.Sprintf("[%s:%s] %s", e.Code, e.Section, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *HostError) Unwrap() error {
	return e.Err
}

// SetSection sets the context section
func (e *HostError) SetSection(section string) *HostError {
	e.Section = section
	return e
}

// SetOption sets the config option
func (e *HostError) SetOption(option string) *HostError {
	e.Option = option
	return e
}

// New creates a new HostError
func New(code ErrorCode, message string) *HostError {
	return &HostError{Code: code, Message: message}
}

// Wrap wraps an existing error with additional context
func Wrap(err error, code ErrorCode, message string) *HostError {
	return &HostError{Code: code, Message: message, Err: err}
}

// Config errors

// ConfigSectionError creates an error for a missing config section
func ConfigSectionError(section string) *HostError {
	return New(ErrConfigSection, fmt.Sprintf("section '%s' not found", section)).
		SetSection(section)
}

// ConfigOptionError creates an error for a missing config option
func ConfigOptionError(section, option string) *HostError {
	return New(ErrConfigOption, fmt.Sprintf("option '%s' not found in section '%s'", option, section)).
		SetSection(section).
		SetOption(option)
}

// ConfigValidationError creates an error for a config validation failure
func ConfigValidationError(section, option, reason string) *HostError {
	return New(ErrConfigValidation, fmt.Sprintf("option '%s' in section '%s': %s", option, section, reason)).
		SetSection(section).
		SetOption(option)
}

// ConfigTypeError creates an error for a config type conversion failure
func ConfigTypeError(section, option, value, targetType string) *HostError {
	return New(ErrConfigType, fmt.Sprintf("option '%s' in section '%s': failed to parse '%s' as %s", option, section, value, targetType)).
		SetSection(section).
		SetOption(option)
}

// Serial errors

// SerialOpenError creates an error for a serial port open failure
func SerialOpenError(device string, err error) *HostError {
	return Wrap(err, ErrSerialOpen, fmt.Sprintf("unable to open %s", device))
}

// SerialIOError creates an error for a serial read/write failure
func SerialIOError(operation string, err error) *HostError {
	return Wrap(err, ErrSerialIO, fmt.Sprintf("serial %s failed", operation))
}

// Servo errors

// ServoChannelError creates an error for an out-of-range servo channel
func ServoChannelError(channel int) *HostError {
	return New(ErrServoChannel, fmt.Sprintf("channel %d out of range [0, 31]", channel))
}

// ServoPulseError creates an error for an out-of-range pulse width
func ServoPulseError(pulse, minPulse, maxPulse int) *HostError {
	return New(ErrServoPulse, fmt.Sprintf("pulse width %d out of range [%d, %d]", pulse, minPulse, maxPulse))
}

// ServoNotConnectedError creates an error for a command on a closed link
func ServoNotConnectedError() *HostError {
	return New(ErrServoNotConnected, "controller is not connected")
}

// Is checks if an error matches the given error code
func Is(err error, code ErrorCode) bool {
	if hostErr, ok := err.(*HostError); ok {
		return hostErr.Code == code
	}
	return false
}

// IsConfig checks if an error is a config error
func IsConfig(err error) bool {
	return Is(err, ErrConfigSection) ||
		Is(err, ErrConfigOption) ||
		Is(err, ErrConfigValidation) ||
		Is(err, ErrConfigType)
}

// IsServo checks if an error is a servo board error
func IsServo(err error) bool {
	return Is(err, ErrServoChannel) ||
		Is(err, ErrServoPulse) ||
		Is(err, ErrServoNotConnected)
}
