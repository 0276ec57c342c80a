// Package process implements child process execution and monitoring for svinit.
package process

import (
	"fmt"
	"syscall"
)

// ExecError represents a failure to launch a child process.
type ExecError struct {
	Command string
	Err     error
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("failed to execute %s: %v", e.Command, e.Err)
}

func (e *ExecError) Unwrap() error { return e.Err }

// ExecParams holds the parameters for starting a child process.
type ExecParams struct {
	// Command is the program and arguments to execute.
	Command []string

	// WorkingDir is the working directory for the process.
	WorkingDir string

	// Env holds additional environment variables (key=value).
	Env []string

	// OnConsole attaches the process to the init's stdin/stdout/stderr.
	// Respawned getty sessions run on the console.
	OnConsole bool
}

// ChildExit represents the result of a child process termination.
type ChildExit struct {
	// PID of the terminated process.
	PID int

	// Status is the wait status from the OS.
	Status syscall.WaitStatus
}

// Exited returns true if the child exited normally.
func (c ChildExit) Exited() bool {
	return c.Status.Exited()
}

// ExitedClean returns true if the child exited with code 0.
func (c ChildExit) ExitedClean() bool {
	return c.Exited() && c.Status.ExitStatus() == 0
}

// Signaled returns true if the child was killed by a signal.
func (c ChildExit) Signaled() bool {
	return c.Status.Signaled()
}

// ExitCode returns the exit code, or -1 if the child did not exit normally.
func (c ChildExit) ExitCode() int {
	if c.Exited() {
		return c.Status.ExitStatus()
	}
	return -1
}
