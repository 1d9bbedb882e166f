// Package ssc32u implements the command protocol of the Lynxmotion
// SSC-32U servo controller board: pulse-width servo commands over a
// serial link, with the board's query commands for move completion and
// servo position readback.
package ssc32u

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"armhost/pkg/errors"
	"armhost/pkg/log"
	"armhost/pkg/serial"
)

// Board limits.
const (
	ChannelMin = 0
	ChannelMax = 31

	// The board accepts 500-2500 us, but several common servos buzz at
	// the extremes, so the defaults are narrowed.
	DefaultMinPulse = 600
	DefaultMaxPulse = 2400
)

// Config holds controller configuration.
type Config struct {
	// Port is the serial device path.
	Port string

	// Baud rate (default 9600).
	Baud int

	// MinPulse/MaxPulse bound every channel's pulse width in
	// microseconds.
	MinPulse int
	MaxPulse int

	// SettleDelay is how long to wait after opening the port before the
	// board accepts commands (default 2s).
	SettleDelay time.Duration
}

// MoveOptions are the optional speed/time modifiers of a move command.
type MoveOptions struct {
	// Speed in microseconds per second (0 = unconstrained).
	Speed int

	// Time for the whole move in milliseconds (0 = unconstrained).
	Time int
}

// ServoMove is one channel/pulse pair in a group move.
type ServoMove struct {
	Channel int
	Pulse   int
}

// Controller drives one SSC-32U board.
type Controller struct {
	mu       sync.Mutex
	cfg      Config
	link     io.ReadWriteCloser
	logger   *log.Logger
	lastCmd  string
	lastTime time.Time
}

// New creates a Controller. Call Connect (or Attach) before sending
// commands.
func New(cfg Config) *Controller {
	if cfg.Baud == 0 {
		cfg.Baud = 9600
	}
	if cfg.MinPulse == 0 {
		cfg.MinPulse = DefaultMinPulse
	}
	if cfg.MaxPulse == 0 {
		cfg.MaxPulse = DefaultMaxPulse
	}
	if cfg.SettleDelay == 0 {
		cfg.SettleDelay = 2 * time.Second
	}
	return &Controller{
		cfg:    cfg,
		logger: log.GetLogger("ssc32u"),
	}
}

// Connect opens the configured serial port. The board needs a moment
// after the port opens before it accepts commands.
func (c *Controller) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.link != nil {
		return nil
	}

	port, err := serial.Open(serial.Config{
		Device:       c.cfg.Port,
		BaudRate:     c.cfg.Baud,
		ReadTimeout:  time.Second,
		RTSOnConnect: true,
		DTROnConnect: true,
	})
	if err != nil {
		return errors.SerialOpenError(c.cfg.Port, err)
	}
	time.Sleep(c.cfg.SettleDelay)

	c.link = port
	c.logger.WithField("port", c.cfg.Port).Info("connected")
	return nil
}

// Attach connects the controller to an existing link. Used by tests and
// by hosts that manage the port themselves.
func (c *Controller) Attach(link io.ReadWriteCloser) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.link = link
}

// Disconnect closes the link.
func (c *Controller) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.link == nil {
		return nil
	}
	err := c.link.Close()
	c.link = nil
	c.logger.Info("disconnected")
	return err
}

// Connected reports whether a link is open.
func (c *Controller) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.link != nil
}

// LastCommand returns the most recently sent command, without the
// trailing carriage return.
func (c *Controller) LastCommand() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return strings.TrimSuffix(c.lastCmd, "\r")
}

// checkChannel validates a channel number.
func (c *Controller) checkChannel(channel int) error {
	if channel < ChannelMin || channel > ChannelMax {
		return errors.ServoChannelError(channel)
	}
	return nil
}

// checkPulse validates a pulse width against the configured limits.
func (c *Controller) checkPulse(pulse int) error {
	if pulse < c.cfg.MinPulse || pulse > c.cfg.MaxPulse {
		return errors.ServoPulseError(pulse, c.cfg.MinPulse, c.cfg.MaxPulse)
	}
	return nil
}

// send writes a command to the board, appending the carriage return
// terminator. The caller must hold c.mu.
func (c *Controller) send(cmd string) error {
	if c.link == nil {
		return errors.ServoNotConnectedError()
	}
	if !strings.HasSuffix(cmd, "\r") {
		cmd += "\r"
	}
	if _, err := c.link.Write([]byte(cmd)); err != nil {
		return errors.SerialIOError("write", err)
	}
	c.lastCmd = cmd
	c.lastTime = time.Now()
	c.logger.WithField("cmd", strings.TrimSuffix(cmd, "\r")).Debug("sent")
	return nil
}

// MoveServo commands one servo to a pulse width.
// Command format: #<ch>P<pw>[S<spd>][T<time>]<cr>
func (c *Controller) MoveServo(channel, pulse int, opts MoveOptions) error {
	if err := c.checkChannel(channel); err != nil {
		return err
	}
	if err := c.checkPulse(pulse); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	cmd := fmt.Sprintf("#%dP%d", channel, pulse)
	if opts.Speed > 0 {
		cmd += fmt.Sprintf("S%d", opts.Speed)
	}
	if opts.Time > 0 {
		cmd += fmt.Sprintf("T%d", opts.Time)
	}
	return c.send(cmd)
}

// MoveServos commands several servos in one group move. The board
// coordinates a group move so all servos finish together when a time is
// given. Command format: #<ch>P<pw>#<ch>P<pw>...[S<spd>][T<time>]<cr>
func (c *Controller) MoveServos(moves []ServoMove, opts MoveOptions) error {
	if len(moves) == 0 {
		return nil
	}
	if len(moves) > ChannelMax+1 {
		return errors.New(errors.ErrServoChannel,
			fmt.Sprintf("cannot command %d servos at once (max %d)", len(moves), ChannelMax+1))
	}

	var sb strings.Builder
	for _, m := range moves {
		if err := c.checkChannel(m.Channel); err != nil {
			return err
		}
		if err := c.checkPulse(m.Pulse); err != nil {
			return err
		}
		fmt.Fprintf(&sb, "#%dP%d", m.Channel, m.Pulse)
	}
	if opts.Speed > 0 {
		fmt.Fprintf(&sb, "S%d", opts.Speed)
	}
	if opts.Time > 0 {
		fmt.Fprintf(&sb, "T%d", opts.Time)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.send(sb.String())
}

// QueryMovementStatus asks the board whether a group move is still in
// progress. The board answers a single byte: '+' moving, '.' done.
func (c *Controller) QueryMovementStatus() (moving bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.send("Q"); err != nil {
		return false, err
	}
	buf := make([]byte, 1)
	if _, err := io.ReadFull(c.link, buf); err != nil {
		return false, errors.SerialIOError("read", err)
	}
	return buf[0] == '+', nil
}

// QueryPulseWidth asks the board for a channel's current pulse width.
// The board answers one byte holding pulse/10, so the result has 10 us
// resolution.
func (c *Controller) QueryPulseWidth(channel int) (int, error) {
	if err := c.checkChannel(channel); err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.send(fmt.Sprintf("QP%d", channel)); err != nil {
		return 0, err
	}
	buf := make([]byte, 1)
	if _, err := io.ReadFull(c.link, buf); err != nil {
		return 0, errors.SerialIOError("read", err)
	}
	return int(buf[0]) * 10, nil
}
