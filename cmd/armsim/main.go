// armsim runs the arm host without hardware and traces a scripted path
// through the workspace, so UIs and WebSocket clients can be developed
// against live state without a physical arm.
//
// Usage:
//
//	armsim -config ~/arm.cfg [options]
//
// Options:
//
//	-config string   Arm configuration file (required)
//	-listen string   State server address (overrides config)
//	-rate float      Path update rate in Hz (default 10)
//	-trace           Enable debug logging
package main

import (
	"flag"
	"fmt"
	"math"
	"os"
	"os/signal"
	"syscall"

	"armhost/pkg/config"
	"armhost/pkg/kinematics"
	"armhost/pkg/log"
	"armhost/pkg/reactor"
	"armhost/pkg/stateserver"
)

func main() {
	configFile := flag.String("config", "", "Arm configuration file (required)")
	listenAddr := flag.String("listen", "", "State server address (overrides config)")
	rate := flag.Float64("rate", 10, "Path update rate in Hz")
	trace := flag.Bool("trace", false, "Enable debug logging")
	flag.Parse()

	if *configFile == "" {
		fmt.Fprintf(os.Stderr, "Error: -config is required\n")
		flag.Usage()
		os.Exit(1)
	}

	root := log.New("armsim")
	log.ConfigureFromEnv(root)
	if *trace {
		root.SetLevel(log.DEBUG)
	}
	log.SetDefaultLogger(root)
	logger := log.GetLogger("main")

	cfg, err := config.ParseArmConfig(*configFile)
	if err != nil {
		logger.WithError(err).Error("config error")
		os.Exit(1)
	}
	if *listenAddr != "" {
		cfg.ListenAddr = *listenAddr
	}
	if cfg.ListenAddr == "" {
		// The simulator is pointless without a state server.
		cfg.ListenAddr = ":8137"
	}

	tracker := stateserver.NewArmTracker(cfg.Geometry, nil)

	// Scripted demo path: a circle halfway out in the workspace at
	// shoulder height, swept once every 20 seconds.
	g := cfg.Geometry
	center := g.Reach() * 0.5
	radius := g.Reach() * 0.25
	height := g.BaseHeight

	r := reactor.New()
	period := 1.0 / *rate
	r.RegisterTimer(func(eventtime float64) float64 {
		phase := 2 * math.Pi * eventtime / 20
		target := kinematics.Point{
			X: center + radius*math.Cos(phase),
			Y: radius * math.Sin(phase),
			Z: height,
		}
		state := tracker.MoveTo(target)
		logger.WithField("target", fmt.Sprintf("(%.0f, %.0f, %.0f)", target.X, target.Y, target.Z)).
			Debug("angles: base=%.1f shoulder=%.1f elbow=%.1f",
				state.Angles.Base, state.Angles.Shoulder, state.Angles.Elbow)
		return eventtime + period
	}, reactor.Now)
	r.Run()
	defer func() {
		r.End()
		r.Wait()
	}()

	server := stateserver.New(stateserver.Config{
		Addr:       cfg.ListenAddr,
		Arm:        tracker,
		UpdateRate: cfg.UpdateRate,
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	logger.WithField("addr", cfg.ListenAddr).Info("simulator running")

	select {
	case <-sigCh:
		logger.Info("shutdown signal received")
		server.Stop()
	case err := <-errCh:
		if err != nil {
			logger.WithError(err).Error("state server failed")
			os.Exit(1)
		}
	}
}
