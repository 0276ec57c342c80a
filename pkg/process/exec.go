package process

import (
	"context"
	"os"
	"os/exec"
	"syscall"
)

// StartProcess starts a child process with the given parameters.
// It returns the PID and a channel that will receive exactly one ChildExit
// when the process terminates. The caller must read from the channel.
//
// If the command cannot be started at all (e.g., binary not found),
// an error is returned and no channel/PID is produced.
func StartProcess(params ExecParams) (int, <-chan ChildExit, error) {
	if len(params.Command) == 0 {
		return 0, nil, &ExecError{Command: "", Err: os.ErrInvalid}
	}

	cmd := exec.Command(params.Command[0], params.Command[1:]...)

	if params.WorkingDir != "" {
		cmd.Dir = params.WorkingDir
	}

	if len(params.Env) > 0 {
		cmd.Env = append(os.Environ(), params.Env...)
	}

	// Own process group so the group can be signaled later.
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}

	if params.OnConsole {
		cmd.Stdin = os.Stdin
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
	}

	if err := cmd.Start(); err != nil {
		return 0, nil, &ExecError{Command: params.Command[0], Err: err}
	}

	pid := cmd.Process.Pid
	exitCh := make(chan ChildExit, 1)

	// Goroutine that waits for the process to finish.
	go func() {
		defer close(exitCh)

		err := cmd.Wait()

		var status syscall.WaitStatus
		if err != nil {
			if exitErr, ok := err.(*exec.ExitError); ok {
				status = exitErr.Sys().(syscall.WaitStatus)
			}
		}

		exitCh <- ChildExit{
			PID:    pid,
			Status: status,
		}
	}()

	return pid, exitCh, nil
}

// RunBounded starts a process and waits for it to exit, but no longer than
// the context allows. On context expiry the process group is killed and
// ctx.Err() is returned together with the (possibly zero) exit information.
// Runlevel scripts are executed through this so an unresponsive script
// cannot stall boot.
func RunBounded(ctx context.Context, params ExecParams) (ChildExit, error) {
	pid, exitCh, err := StartProcess(params)
	if err != nil {
		return ChildExit{}, err
	}

	select {
	case exit := <-exitCh:
		return exit, nil

	case <-ctx.Done():
		// Kill the whole group, then collect the exit so the wait
		// goroutine does not leak.
		SignalProcess(pid, syscall.SIGKILL, false)
		exit := <-exitCh
		return exit, ctx.Err()
	}
}

// SignalProcess sends a signal to a process.
// If processOnly is false, the whole process group is signaled.
func SignalProcess(pid int, sig syscall.Signal, processOnly bool) error {
	if pid <= 0 {
		return nil
	}
	if processOnly {
		return syscall.Kill(pid, sig)
	}
	return syscall.Kill(-pid, sig)
}
