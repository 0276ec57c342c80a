package supervisor

import (
	"context"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/sparrowlinux/svinit/pkg/inittab"
	"github.com/sparrowlinux/svinit/pkg/logging"
	"github.com/sparrowlinux/svinit/pkg/process"
)

// execRetryPause is applied when a respawn command cannot even be started
// (binary missing, permission denied). Child exits themselves respawn
// unthrottled; a command that never launches produces no child to wait on
// and would otherwise spin the supervisor.
const execRetryPause = 1 * time.Second

// stopKillGrace is how long a child gets to act on SIGTERM during monitor
// shutdown before it is killed outright.
const stopKillGrace = 5 * time.Second

// respawnMonitor keeps one respawn-class entry perpetually running.
// Exactly one monitor exists per entry id, and the monitor is the only
// creator of children for its entry, so there is never more than one
// concurrently-live child per id.
type respawnMonitor struct {
	entry  inittab.Entry
	logger *logging.Logger

	// delay between exit and relaunch. Zero (the default) preserves the
	// reference behavior of immediate, unthrottled respawn; a non-zero
	// value is the optional backoff extension.
	delay time.Duration

	cancel context.CancelFunc

	launches atomic.Int64
	handle   process.Handle
}

func newRespawnMonitor(entry inittab.Entry, logger *logging.Logger, delay time.Duration) *respawnMonitor {
	return &respawnMonitor{
		entry:  entry,
		logger: logger,
		delay:  delay,
	}
}

// Launches returns how many times the entry's command has been started.
func (m *respawnMonitor) Launches() int64 {
	return m.launches.Load()
}

// run launches the child and relaunches it on every exit until ctx is
// cancelled. On cancellation the live child (if any) is terminated and
// its exit collected before returning.
func (m *respawnMonitor) run(ctx context.Context) error {
	for {
		pid, exitCh, err := process.StartProcess(process.ExecParams{
			Command: m.entry.Command,
		})
		if err != nil {
			m.logger.Error("Respawn '%s': %v", m.entry.ID, err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(execRetryPause):
				continue
			}
		}

		m.handle = process.Handle{PID: pid, ExitCh: exitCh}
		n := m.launches.Add(1)
		if n == 1 {
			m.logger.Info("Started '%s' (pid %d)", m.entry.ID, pid)
		} else {
			m.logger.ChildRespawned(m.entry.ID, pid)
		}

		select {
		case exit := <-exitCh:
			m.handle.Clear()
			// Child exit is never an error; any exit code respawns.
			m.logger.Debug("Child '%s' (pid %d) exited with status %d",
				m.entry.ID, exit.PID, exit.ExitCode())

			select {
			case <-ctx.Done():
				return nil
			default:
			}

			if m.delay > 0 {
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(m.delay):
				}
			}

		case <-ctx.Done():
			// Supervisor is shutting down: terminate the child and
			// collect its exit so nothing leaks. Children that ignore
			// SIGTERM are killed after a grace period.
			process.SignalProcess(pid, syscall.SIGTERM, false)
			select {
			case <-exitCh:
			case <-time.After(stopKillGrace):
				process.SignalProcess(pid, syscall.SIGKILL, false)
				<-exitCh
			}
			m.handle.Clear()
			return nil
		}
	}
}
