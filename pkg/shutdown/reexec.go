package shutdown

import (
	"os"

	"golang.org/x/sys/unix"

	"github.com/sparrowlinux/svinit/pkg/logging"
)

// Mockable exec function for testing.
var execFunc = unix.Exec

// Restart replaces the supervisor's process image with a fresh copy of
// itself. Only PID 1 may be the system's init, so the restart action must
// preserve PID 1 identity rather than spawn a successor.
//
// The sequence is:
//  1. Sync filesystems to minimize data loss
//  2. Kill all remaining processes
//  3. Re-exec with the original arguments and environment
//
// If the exec fails, an error is returned and the caller should fall back
// to a hard reboot.
func Restart(logger *logging.Logger) error {
	logger.Notice("Restarting supervisor in place...")

	syncFunc()

	KillAllProcesses(logger)

	syncFunc()

	execPath, err := os.Executable()
	if err != nil {
		return err
	}

	logger.Notice("Re-executing %s", execPath)

	// unix.Exec replaces the current process image entirely.
	// If successful, this call never returns.
	return execFunc(execPath, os.Args, os.Environ())
}
