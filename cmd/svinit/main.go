// svinit is a small System V style init: it parses an inittab, runs the
// sysinit action, drives ordered runlevel transitions, and keeps respawn
// entries alive for the lifetime of the system.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/sparrowlinux/svinit/pkg/control"
	"github.com/sparrowlinux/svinit/pkg/logging"
	"github.com/sparrowlinux/svinit/pkg/shutdown"
	"github.com/sparrowlinux/svinit/pkg/supervisor"
)

const (
	version = "0.1.0"

	defaultInittab    = "/etc/inittab"
	defaultRCDir      = "/etc/rc.d"
	defaultSocketPath = "/run/svinit.socket"
	defaultStateDir   = "/run/svinit"
)

func main() {
	var (
		inittabPath   string
		rcDir         string
		defaultLevel  string
		scriptTimeout time.Duration
		respawnDelay  time.Duration
		socketPath    string
		stateDir      string
		watchInittab  bool
		logLevel      string
		showVersion   bool
	)

	flag.StringVar(&inittabPath, "inittab", defaultInittab, "inittab file path")
	flag.StringVar(&rcDir, "rc-dir", defaultRCDir, "runlevel directory root (contains rc<N>.d)")
	flag.StringVar(&defaultLevel, "default-runlevel", "3", "runlevel to boot into")
	flag.DurationVar(&scriptTimeout, "script-timeout", 30*time.Second, "bounded wait per runlevel script")
	flag.DurationVar(&respawnDelay, "respawn-delay", 0, "optional pause before relaunching a respawn entry (0 = immediate)")
	flag.StringVar(&socketPath, "socket-path", defaultSocketPath, "control socket path")
	flag.StringVar(&stateDir, "state-dir", defaultStateDir, "directory for the runlevel record")
	flag.BoolVar(&watchInittab, "watch-inittab", false, "reload automatically when the inittab changes")
	flag.StringVar(&logLevel, "log-level", "info", "log level (debug, info, notice, warn, error)")
	flag.BoolVar(&showVersion, "version", false, "show version and exit")

	flag.Parse()

	if showVersion {
		fmt.Printf("svinit version %s\n", version)
		os.Exit(0)
	}

	logger := logging.New(logging.ParseLevel(logLevel))

	isPID1 := os.Getpid() == 1
	if isPID1 {
		logger.Notice("svinit starting as PID 1")
		if err := shutdown.InitPID1(logger); err != nil {
			logger.Error("PID 1 initialization warning: %v", err)
		}
	} else {
		logger.Notice("svinit starting (PID %d, not system init)", os.Getpid())
	}

	sup, err := supervisor.New(supervisor.Config{
		InittabPath:     inittabPath,
		RCDir:           rcDir,
		DefaultRunlevel: defaultLevel,
		ScriptTimeout:   scriptTimeout,
		RespawnDelay:    respawnDelay,
		StateDir:        stateDir,
		WatchInittab:    watchInittab,
	}, logger)
	if err != nil {
		// Configuration errors abort boot before any script executes.
		logger.Error("Configuration rejected: %v", err)
		if isPID1 {
			logger.Error("Cannot boot without a valid inittab")
			shutdown.InfiniteHold()
		}
		os.Exit(1)
	}

	ctx := context.Background()

	ctrlServer := control.NewServer(sup, socketPath, logger)
	if err := ctrlServer.Start(ctx); err != nil {
		// Non-fatal: the system boots without telinit support.
		logger.Error("Failed to start control socket: %v", err)
	} else {
		defer ctrlServer.Stop()
	}

	finalType, err := sup.Run(ctx)
	if err != nil {
		logger.Error("Supervisor: %v", err)
	}

	if isPID1 {
		handlePID1Shutdown(finalType, logger)
		// handlePID1Shutdown does not return
	}

	logger.Info("svinit shutdown complete (%s)", finalType)
}

// handlePID1Shutdown performs the terminal system action once the
// supervisor has settled on one. This function does not return.
func handlePID1Shutdown(finalType shutdown.Type, logger *logging.Logger) {
	switch finalType {
	case shutdown.None:
		// The supervisor returned without a requested shutdown: an
		// internal fault with no recovery authority above it.
		logger.Error("Supervisor stopped unexpectedly, halting")
		shutdown.Execute(shutdown.Halt, logger)

	case shutdown.ReExec:
		if err := shutdown.Restart(logger); err != nil {
			logger.Error("Re-exec failed: %v, falling back to reboot", err)
			shutdown.Execute(shutdown.Reboot, logger)
		}
		// Restart replaces the process image; only a failed exec
		// reaches here.
		shutdown.InfiniteHold()

	case shutdown.Halt, shutdown.Poweroff, shutdown.Reboot:
		shutdown.Execute(finalType, logger)

	default:
		logger.Error("Unknown shutdown type: %s, halting", finalType)
		shutdown.Execute(shutdown.Halt, logger)
	}
}
