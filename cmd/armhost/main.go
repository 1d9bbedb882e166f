// armhost drives a 3-DOF robotic arm from cartesian targets.
// It solves targets to joint angles with the closed-form solver, commands
// the servos through an SSC-32U board, and serves the arm state over
// HTTP/WebSocket for UIs.
//
// Usage:
//
//	armhost -config ~/arm.cfg [options]
//
// Options:
//
//	-config string   Arm configuration file (required)
//	-listen string   State server address (overrides config)
//	-logfile string  Log file path with rotation (default: stderr)
//	-json            Log in JSON format
//	-trace           Enable debug logging
//	-no-hardware     Solve and serve state without a serial connection
//
// Examples:
//
//	# Drive the arm on the configured serial port
//	armhost -config ~/arm.cfg
//
//	# Solver and state server only, no board attached
//	armhost -config ~/arm.cfg -no-hardware
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"armhost/pkg/config"
	"armhost/pkg/kinematics"
	"armhost/pkg/log"
	"armhost/pkg/reactor"
	"armhost/pkg/ssc32u"
	"armhost/pkg/stateserver"
)

func main() {
	configFile := flag.String("config", "", "Arm configuration file (required)")
	listenAddr := flag.String("listen", "", "State server address (overrides config)")
	logFile := flag.String("logfile", "", "Log file path (default: stderr)")
	jsonLog := flag.Bool("json", false, "Log in JSON format")
	trace := flag.Bool("trace", false, "Enable debug logging")
	noHardware := flag.Bool("no-hardware", false, "Run without a serial connection")
	flag.Parse()

	if *configFile == "" {
		fmt.Fprintf(os.Stderr, "Error: -config is required\n")
		flag.Usage()
		os.Exit(1)
	}

	logger := setupLogging(*logFile, *jsonLog, *trace)

	logger.Info("========================================")
	logger.Info("Armhost Starting")
	logger.Info("========================================")

	cfg, err := config.ParseArmConfig(*configFile)
	if err != nil {
		logger.WithError(err).Error("config error")
		os.Exit(1)
	}
	if *listenAddr != "" {
		cfg.ListenAddr = *listenAddr
	}

	logger.WithField("file", *configFile).Info("config loaded")
	logger.Info("geometry: base=%.1f upper=%.1f forearm=%.1f reach=%.1f",
		cfg.Geometry.BaseHeight, cfg.Geometry.UpperArmLength,
		cfg.Geometry.ForearmLength, cfg.Geometry.Reach())

	// Hardware link. A failed connect is not fatal: the host still solves
	// targets and serves state so the arm can be tested without the board.
	var move stateserver.MoveFunc
	var ctrl *ssc32u.Controller
	if cfg.Port != "" && !*noHardware {
		ctrl = ssc32u.New(ssc32u.Config{
			Port:        cfg.Port,
			Baud:        cfg.Baud,
			MinPulse:    cfg.MinPulse,
			MaxPulse:    cfg.MaxPulse,
			SettleDelay: cfg.ConnectTimeout,
		})
		if err := ctrl.Connect(); err != nil {
			logger.WithError(err).Warn("servo board unavailable, continuing without hardware")
			ctrl = nil
		} else {
			arm := ssc32u.NewArm(ctrl,
				servoFromConfig(cfg.Servos["base"]),
				servoFromConfig(cfg.Servos["shoulder"]),
				servoFromConfig(cfg.Servos["elbow"]))
			move = func(angles kinematics.JointAngles) error {
				return arm.Move(angles, ssc32u.MoveOptions{})
			}
			defer ctrl.Disconnect()
		}
	} else {
		logger.Info("running without hardware")
	}

	tracker := stateserver.NewArmTracker(cfg.Geometry, move)

	// The reactor polls the board's move status so finished moves show up
	// in the debug log without blocking any command path.
	r := reactor.New()
	if ctrl != nil {
		r.RegisterTimer(func(eventtime float64) float64 {
			moving, err := ctrl.QueryMovementStatus()
			if err == nil && moving {
				logger.Debug("move in progress")
			}
			return eventtime + 1.0
		}, reactor.Now)
	}
	r.Run()
	defer func() {
		r.End()
		r.Wait()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	var server *stateserver.Server
	errCh := make(chan error, 1)
	if cfg.ListenAddr != "" {
		server = stateserver.New(stateserver.Config{
			Addr:       cfg.ListenAddr,
			Arm:        tracker,
			UpdateRate: cfg.UpdateRate,
		})
		go func() {
			errCh <- server.Start()
		}()
	}

	logger.Info("========================================")
	logger.Info("Armhost Ready")
	if cfg.ListenAddr != "" {
		logger.Info("state server: ws://<host>%s/ws", cfg.ListenAddr)
	}
	logger.Info("Press Ctrl+C to stop")
	logger.Info("========================================")

	select {
	case <-sigCh:
		logger.Info("shutdown signal received")
		if server != nil {
			server.Stop()
		}
	case err := <-errCh:
		if err != nil {
			logger.WithError(err).Error("state server failed")
			os.Exit(1)
		}
	}

	logger.Info("Armhost stopped")
}

// setupLogging configures the default logger from the command line flags
// and returns the main component logger.
func setupLogging(logFile string, jsonLog, trace bool) *log.Logger {
	root := log.New("armhost")
	if logFile != "" {
		fileLogger, _, err := log.NewFileLogger("armhost", log.RotationConfig{
			Filename: logFile,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening log file: %v\n", err)
			os.Exit(1)
		}
		root = fileLogger
	}
	log.ConfigureFromEnv(root)
	if jsonLog {
		root.SetFormat(log.FormatJSON)
	}
	if trace {
		root.SetLevel(log.DEBUG)
	}
	log.SetDefaultLogger(root)
	return log.GetLogger("main")
}

// servoFromConfig converts a parsed servo section to the board's servo
// calibration.
func servoFromConfig(sc *config.ServoConfig) ssc32u.Servo {
	return ssc32u.Servo{
		Channel:  sc.Channel,
		AngleMin: sc.AngleMin,
		AngleMax: sc.AngleMax,
		PulseMin: sc.PulseMin,
		PulseMax: sc.PulseMax,
		Invert:   sc.Invert,
	}
}
