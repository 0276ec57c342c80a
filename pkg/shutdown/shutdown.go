package shutdown

import (
	"fmt"
	"time"

	"golang.org/x/sys/unix"

	"github.com/sparrowlinux/svinit/pkg/logging"
)

// Type is the terminal system action the supervisor settled on.
type Type uint8

const (
	None     Type = iota // No shutdown requested
	Halt                 // Halt the system without powering down
	Poweroff             // Power off
	Reboot               // Hardware reboot
	ReExec               // Replace the supervisor's process image, keeping PID 1
)

func (t Type) String() string {
	switch t {
	case None:
		return "none"
	case Halt:
		return "halt"
	case Poweroff:
		return "poweroff"
	case Reboot:
		return "reboot"
	case ReExec:
		return "re-exec"
	default:
		return fmt.Sprintf("Type(%d)", t)
	}
}

// ProcessKillGracePeriod is the time to wait between SIGTERM and SIGKILL
// when killing all remaining processes during shutdown.
const ProcessKillGracePeriod = 1 * time.Second

// Mockable syscall functions for testing.
var (
	killFunc   = unix.Kill
	syncFunc   = unix.Sync
	rebootFunc = unix.Reboot
)

// Execute performs the full shutdown sequence after the halt/reboot
// runlevel transition has completed. It kills remaining processes, syncs
// filesystems, and issues the appropriate reboot syscall. It should only
// be called when running as PID 1 and does not return under normal
// circumstances.
func Execute(shutdownType Type, logger *logging.Logger) {
	logger.Notice("Executing shutdown: %s", shutdownType)

	KillAllProcesses(logger)

	logger.Info("Syncing filesystems...")
	syncFunc()

	if err := rebootSystem(shutdownType); err != nil {
		logger.Error("Reboot syscall failed: %v", err)
	}

	// The reboot syscall failed. PID 1 must never exit, so hold.
	logger.Error("Shutdown failed, holding indefinitely")
	InfiniteHold()
}

// KillAllProcesses sends SIGTERM to all processes, waits for a grace
// period, then sends SIGKILL. kill(-1, sig) signals every process except
// PID 1 itself.
func KillAllProcesses(logger *logging.Logger) {
	logger.Info("Sending SIGTERM to all processes...")
	if err := killFunc(-1, unix.SIGTERM); err != nil {
		// ESRCH means no processes to signal - that's fine
		if err != unix.ESRCH {
			logger.Debug("kill(-1, SIGTERM): %v", err)
		}
	}

	time.Sleep(ProcessKillGracePeriod)

	logger.Info("Sending SIGKILL to remaining processes...")
	if err := killFunc(-1, unix.SIGKILL); err != nil {
		if err != unix.ESRCH {
			logger.Debug("kill(-1, SIGKILL): %v", err)
		}
	}
}

// rebootSystem maps a shutdown Type to the appropriate Linux reboot
// command and issues the syscall.
func rebootSystem(shutdownType Type) error {
	var cmd int
	switch shutdownType {
	case Halt:
		cmd = unix.LINUX_REBOOT_CMD_HALT
	case Poweroff:
		cmd = unix.LINUX_REBOOT_CMD_POWER_OFF
	case Reboot:
		cmd = unix.LINUX_REBOOT_CMD_RESTART
	default:
		// Unknown types halt.
		cmd = unix.LINUX_REBOOT_CMD_HALT
	}
	return rebootFunc(cmd)
}

// InfiniteHold blocks the calling goroutine forever.
// PID 1 must never exit; this is the last resort when the reboot syscall
// fails or when the supervisor hits an unrecoverable internal fault.
func InfiniteHold() {
	select {}
}
