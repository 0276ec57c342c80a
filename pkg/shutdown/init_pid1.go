// Package shutdown implements PID 1 initialization and terminal system
// actions for svinit: reboot, halt, poweroff, and in-place re-exec.
package shutdown

import (
	"os"
	"os/signal"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/sparrowlinux/svinit/pkg/logging"
)

// InitPID1 performs early initialization required when running as PID 1.
// This includes setting up /dev/console, disabling the kernel's own
// Ctrl+Alt+Del handling (so the supervisor receives SIGINT instead),
// setting the child subreaper flag, and ignoring terminal job control
// signals. Each step is best-effort: boot proceeds regardless.
func InitPID1(logger *logging.Logger) error {
	if err := setupConsole(); err != nil {
		logger.Debug("Console setup: %v (non-fatal)", err)
	} else {
		logger.Debug("Console redirected to /dev/console")
	}

	if err := disableCAD(); err != nil {
		logger.Debug("Disable CAD: %v (non-fatal)", err)
	} else {
		logger.Debug("Ctrl+Alt+Del delivery as SIGINT enabled")
	}

	if err := SetChildSubreaper(); err != nil {
		logger.Debug("Set child subreaper: %v (non-fatal)", err)
	} else {
		logger.Debug("Child subreaper set")
	}

	ignoreTerminalSignals()
	logger.Debug("Terminal signals ignored (SIGTSTP, SIGTTIN, SIGTTOU, SIGPIPE)")

	return nil
}

// setupConsole opens /dev/console and redirects stdin, stdout, and stderr
// to it, so supervisor output reaches the system console.
func setupConsole() error {
	consR, err := os.OpenFile("/dev/console", os.O_RDONLY, 0)
	if err != nil {
		return err
	}
	if err := unix.Dup3(int(consR.Fd()), 0, 0); err != nil {
		consR.Close()
		return err
	}
	if int(consR.Fd()) > 2 {
		consR.Close()
	}

	consW, err := os.OpenFile("/dev/console", os.O_RDWR, 0)
	if err != nil {
		return err
	}
	if err := unix.Dup3(int(consW.Fd()), 1, 0); err != nil {
		consW.Close()
		return err
	}
	if err := unix.Dup3(int(consW.Fd()), 2, 0); err != nil {
		consW.Close()
		return err
	}
	if int(consW.Fd()) > 2 {
		consW.Close()
	}

	return nil
}

// disableCAD turns off the kernel's immediate Ctrl+Alt+Del reboot. With
// CAD off the kernel delivers SIGINT to PID 1 instead, which the
// supervisor maps to its ctrlaltdel action for an orderly reboot.
func disableCAD() error {
	return unix.Reboot(unix.LINUX_REBOOT_CMD_CAD_OFF)
}

// SetChildSubreaper sets the current process as a child subreaper, so
// orphaned descendants reparent to it rather than being lost.
func SetChildSubreaper() error {
	return unix.Prctl(unix.PR_SET_CHILD_SUBREAPER, 1, 0, 0, 0)
}

// IsChildSubreaper checks whether the current process is a child
// subreaper.
func IsChildSubreaper() (bool, error) {
	var result int32
	if err := unix.Prctl(unix.PR_GET_CHILD_SUBREAPER, uintptr(unsafe.Pointer(&result)), 0, 0, 0); err != nil {
		return false, err
	}
	return result != 0, nil
}

// ignoreTerminalSignals ignores signals related to terminal job control.
// These are not meaningful for an init system and would otherwise
// interfere with process management.
func ignoreTerminalSignals() {
	signal.Ignore(
		unix.SIGTSTP, // Terminal stop (Ctrl+Z)
		unix.SIGTTIN, // Background process attempting read
		unix.SIGTTOU, // Background process attempting write
		unix.SIGPIPE, // Broken pipe
	)
}
