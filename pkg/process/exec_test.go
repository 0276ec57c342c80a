package process

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestStartProcessCleanExit(t *testing.T) {
	pid, exitCh, err := StartProcess(ExecParams{Command: []string{"/bin/true"}})
	if err != nil {
		t.Fatalf("StartProcess failed: %v", err)
	}
	if pid <= 0 {
		t.Fatalf("invalid pid %d", pid)
	}

	exit := <-exitCh
	if exit.PID != pid {
		t.Errorf("exit.PID = %d, want %d", exit.PID, pid)
	}
	if !exit.Exited() || !exit.ExitedClean() {
		t.Errorf("expected clean exit, got status %v", exit.Status)
	}
	if exit.ExitCode() != 0 {
		t.Errorf("ExitCode() = %d, want 0", exit.ExitCode())
	}
}

func TestStartProcessNonZeroExit(t *testing.T) {
	_, exitCh, err := StartProcess(ExecParams{Command: []string{"/bin/sh", "-c", "exit 7"}})
	if err != nil {
		t.Fatalf("StartProcess failed: %v", err)
	}

	exit := <-exitCh
	if exit.ExitedClean() {
		t.Error("expected non-clean exit")
	}
	if exit.ExitCode() != 7 {
		t.Errorf("ExitCode() = %d, want 7", exit.ExitCode())
	}
}

func TestStartProcessExecFailure(t *testing.T) {
	_, _, err := StartProcess(ExecParams{Command: []string{"/no/such/binary"}})
	if err == nil {
		t.Fatal("expected error for missing binary")
	}

	var execErr *ExecError
	if !errors.As(err, &execErr) {
		t.Fatalf("want ExecError, got %T", err)
	}
	if execErr.Command != "/no/such/binary" {
		t.Errorf("ExecError.Command = %q", execErr.Command)
	}
}

func TestStartProcessEmptyCommand(t *testing.T) {
	if _, _, err := StartProcess(ExecParams{}); err == nil {
		t.Fatal("expected error for empty command")
	}
}

func TestStartProcessEnv(t *testing.T) {
	_, exitCh, err := StartProcess(ExecParams{
		Command: []string{"/bin/sh", "-c", `test "$SVINIT_TEST" = yes`},
		Env:     []string{"SVINIT_TEST=yes"},
	})
	if err != nil {
		t.Fatalf("StartProcess failed: %v", err)
	}

	exit := <-exitCh
	if !exit.ExitedClean() {
		t.Error("environment variable not passed to child")
	}
}

func TestRunBoundedCompletes(t *testing.T) {
	exit, err := RunBounded(context.Background(), ExecParams{Command: []string{"/bin/true"}})
	if err != nil {
		t.Fatalf("RunBounded failed: %v", err)
	}
	if !exit.ExitedClean() {
		t.Error("expected clean exit")
	}
}

func TestRunBoundedTimeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	begin := time.Now()
	exit, err := RunBounded(ctx, ExecParams{Command: []string{"/bin/sleep", "60"}})
	elapsed := time.Since(begin)

	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected DeadlineExceeded, got %v", err)
	}
	if elapsed > 5*time.Second {
		t.Fatalf("bounded wait took %v, process not killed", elapsed)
	}
	if exit.Exited() {
		t.Error("killed process should not report a normal exit")
	}
	if exit.ExitCode() != -1 {
		t.Errorf("ExitCode() = %d, want -1 for a killed process", exit.ExitCode())
	}
}

func TestSignalProcessInvalidPID(t *testing.T) {
	// Non-positive pids are rejected before reaching the kernel; a pid
	// of -1 would signal every process on the machine.
	if err := SignalProcess(0, 0, false); err != nil {
		t.Errorf("SignalProcess(0) = %v, want nil", err)
	}
	if err := SignalProcess(-1, 0, false); err != nil {
		t.Errorf("SignalProcess(-1) = %v, want nil", err)
	}
}

func TestHandle(t *testing.T) {
	h := Handle{PID: 42}
	if !h.IsRunning() {
		t.Error("handle with pid should be running")
	}
	h.Clear()
	if h.IsRunning() {
		t.Error("cleared handle should not be running")
	}
}
