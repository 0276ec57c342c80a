package shutdown

import (
	"io"
	"syscall"
	"testing"

	"golang.org/x/sys/unix"

	"github.com/sparrowlinux/svinit/pkg/logging"
)

func testLogger() *logging.Logger {
	logger := logging.New(logging.LevelError)
	logger.SetOutput(io.Discard)
	return logger
}

func TestKillAllProcesses(t *testing.T) {
	var calls []struct {
		pid int
		sig syscall.Signal
	}

	origKill := killFunc
	killFunc = func(pid int, sig syscall.Signal) error {
		calls = append(calls, struct {
			pid int
			sig syscall.Signal
		}{pid, sig})
		return unix.ESRCH // No processes to signal
	}
	defer func() { killFunc = origKill }()

	KillAllProcesses(testLogger())

	if len(calls) != 2 {
		t.Fatalf("expected 2 kill calls, got %d", len(calls))
	}
	if calls[0].pid != -1 || calls[0].sig != unix.SIGTERM {
		t.Errorf("first call = kill(%d, %v), want kill(-1, SIGTERM)", calls[0].pid, calls[0].sig)
	}
	if calls[1].pid != -1 || calls[1].sig != unix.SIGKILL {
		t.Errorf("second call = kill(%d, %v), want kill(-1, SIGKILL)", calls[1].pid, calls[1].sig)
	}
}

func TestRebootSystemCommandMapping(t *testing.T) {
	var gotCmd int

	origReboot := rebootFunc
	rebootFunc = func(cmd int) error {
		gotCmd = cmd
		return nil
	}
	defer func() { rebootFunc = origReboot }()

	tests := []struct {
		shutdownType Type
		wantCmd      int
	}{
		{Halt, unix.LINUX_REBOOT_CMD_HALT},
		{Poweroff, unix.LINUX_REBOOT_CMD_POWER_OFF},
		{Reboot, unix.LINUX_REBOOT_CMD_RESTART},
		{None, unix.LINUX_REBOOT_CMD_HALT},   // unknown types halt
		{ReExec, unix.LINUX_REBOOT_CMD_HALT}, // re-exec never reaches the syscall; halt if it does
	}

	for _, tt := range tests {
		gotCmd = 0
		if err := rebootSystem(tt.shutdownType); err != nil {
			t.Fatalf("rebootSystem(%v) failed: %v", tt.shutdownType, err)
		}
		if gotCmd != tt.wantCmd {
			t.Errorf("rebootSystem(%v) issued cmd %#x, want %#x", tt.shutdownType, gotCmd, tt.wantCmd)
		}
	}
}

func TestTypeString(t *testing.T) {
	tests := []struct {
		t    Type
		want string
	}{
		{None, "none"},
		{Halt, "halt"},
		{Poweroff, "poweroff"},
		{Reboot, "reboot"},
		{ReExec, "re-exec"},
	}

	for _, tt := range tests {
		if got := tt.t.String(); got != tt.want {
			t.Errorf("Type(%d).String() = %q, want %q", tt.t, got, tt.want)
		}
	}
}
