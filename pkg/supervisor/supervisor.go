// Package supervisor implements the svinit PID-1 process supervisor: it
// owns the inittab table, drives runlevel transitions, keeps respawn
// entries alive, and consumes control events until a terminal shutdown
// action is selected.
package supervisor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sparrowlinux/svinit/internal/util"
	"github.com/sparrowlinux/svinit/pkg/inittab"
	"github.com/sparrowlinux/svinit/pkg/logging"
	"github.com/sparrowlinux/svinit/pkg/process"
	"github.com/sparrowlinux/svinit/pkg/rc"
	"github.com/sparrowlinux/svinit/pkg/shutdown"
)

// Config holds the supervisor's construction parameters. The runlevel
// defaults follow the SysV convention: multi-user 3, reboot 6, halt 0.
type Config struct {
	InittabPath     string
	RCDir           string
	DefaultRunlevel string
	RebootRunlevel  string
	HaltRunlevel    string

	// ScriptTimeout bounds each runlevel script invocation.
	ScriptTimeout time.Duration

	// RespawnDelay is an optional pause between a respawn child's exit
	// and its relaunch. Zero preserves the reference behavior of
	// immediate, unthrottled respawn.
	RespawnDelay time.Duration

	// StateDir receives the runlevel record ("" disables it).
	StateDir string

	// WatchInittab enables automatic reload when the inittab file is
	// rewritten.
	WatchInittab bool
}

func (c Config) withDefaults() Config {
	if c.DefaultRunlevel == "" {
		c.DefaultRunlevel = "3"
	}
	if c.RebootRunlevel == "" {
		c.RebootRunlevel = "6"
	}
	if c.HaltRunlevel == "" {
		c.HaltRunlevel = "0"
	}
	if c.ScriptTimeout == 0 {
		c.ScriptTimeout = rc.DefaultScriptTimeout
	}
	return c
}

// Fault is a defect inside the supervisor's own control logic. It is the
// single error class that may legitimately halt the whole system: there
// is no higher-level recovery authority above PID 1.
type Fault struct {
	Panic interface{}
}

func (f *Fault) Error() string {
	return fmt.Sprintf("supervisor fault: %v", f.Panic)
}

type monitorSlot struct {
	monitor *respawnMonitor
	cancel  context.CancelFunc
	done    chan struct{} // closed when the monitor goroutine returns
}

// Supervisor is the single long-lived root process state. All shared
// state (inittab table, current runlevel, child table) lives here and is
// mutated only from the Run loop; there is no ambient global state.
type Supervisor struct {
	cfg      Config
	logger   *logging.Logger
	table    *inittab.Table
	executor *rc.Executor
	events   chan Event

	monitors    map[string]monitorSlot
	group       *errgroup.Group
	groupCtx    context.Context
	groupCancel context.CancelFunc

	// levelMu guards the runlevel record fields, which the control
	// server reads from its own goroutines.
	levelMu      sync.Mutex
	prevLevel    string
	currentLevel string

	finalType shutdown.Type
}

// New validates the configuration tables and constructs a Supervisor.
// A malformed inittab or runlevel table aborts boot here, before any
// script executes.
func New(cfg Config, logger *logging.Logger) (*Supervisor, error) {
	cfg = cfg.withDefaults()

	table, err := inittab.Load(cfg.InittabPath)
	if err != nil {
		return nil, err
	}

	rcTable, err := rc.LoadDir(cfg.RCDir)
	if err != nil {
		return nil, err
	}

	return &Supervisor{
		cfg:      cfg,
		logger:   logger,
		table:    table,
		executor: rc.NewExecutor(rcTable, logger, rc.WithScriptTimeout(cfg.ScriptTimeout)),
		events:   make(chan Event, 16),
		monitors: make(map[string]monitorSlot),
	}, nil
}

// Submit queues a control event for the steady-state loop. Events are
// consumed one at a time, so two queued transitions execute fully
// sequentially, never interleaved.
func (s *Supervisor) Submit(ev Event) {
	s.events <- ev
}

// CurrentRunlevel returns the most recently completed runlevel target,
// or "N" before the first transition.
func (s *Supervisor) CurrentRunlevel() string {
	s.levelMu.Lock()
	defer s.levelMu.Unlock()
	if s.currentLevel == "" {
		return "N"
	}
	return s.currentLevel
}

// Runlevels returns the previous and current runlevel, "N" standing in
// for levels that do not exist yet.
func (s *Supervisor) Runlevels() (prev, current string) {
	s.levelMu.Lock()
	defer s.levelMu.Unlock()
	prev, current = s.prevLevel, s.currentLevel
	if prev == "" {
		prev = "N"
	}
	if current == "" {
		current = "N"
	}
	return prev, current
}

// Run executes the boot sequence and then the steady-state loop. It
// returns the terminal shutdown action once one has been selected, or a
// *Fault if the supervisor's own logic failed.
//
// Boot sequence: the sysinit entry runs synchronously to completion (exit
// code ignored), then the default runlevel transition, then the wait
// entries in table order, then the respawn monitors start.
func (s *Supervisor) Run(ctx context.Context) (final shutdown.Type, err error) {
	defer func() {
		if r := recover(); r != nil {
			// No recovery path above PID 1; surface the fault and let
			// the caller halt the system.
			final = shutdown.Halt
			err = &Fault{Panic: r}
		}
	}()

	s.runSysinit(ctx)

	if err := s.TransitionTo(ctx, s.cfg.DefaultRunlevel); err != nil {
		return shutdown.Halt, err
	}

	s.runWaitEntries(ctx)

	s.startMonitors(ctx)

	sigCh := setupSignals()
	defer stopSignals(sigCh)

	var watchCh <-chan inittab.WatchEvent
	if s.cfg.WatchInittab {
		ch, cleanup, werr := inittab.Watch(ctx, s.cfg.InittabPath)
		if werr != nil {
			s.logger.Warn("Inittab watch unavailable: %v", werr)
		} else {
			watchCh = ch
			defer cleanup()
		}
	}

	s.logger.Info("Entering steady state at runlevel %s", s.CurrentRunlevel())

	for {
		select {
		case <-ctx.Done():
			s.stopMonitors()
			return shutdown.None, ctx.Err()

		case sig := <-sigCh:
			ev, ok := mapSignal(sig)
			if !ok {
				continue
			}
			s.handleEvent(ctx, ev)

		case ev := <-s.events:
			s.handleEvent(ctx, ev)

		case wev, ok := <-watchCh:
			if !ok {
				watchCh = nil
				continue
			}
			if wev.Err != nil {
				s.logger.Warn("Inittab watch: %v", wev.Err)
				continue
			}
			s.logger.Info("Inittab changed on disk, reloading")
			s.reload()
		}

		if s.finalType != shutdown.None {
			s.stopMonitors()
			return s.finalType, nil
		}
	}
}

// handleEvent maps one control event to its action class. Transitions run
// inline: the loop is single-threaded by design, so only the supervisor
// ever initiates a transition and no two transitions can conflict.
func (s *Supervisor) handleEvent(ctx context.Context, ev Event) {
	switch ev.Kind {
	case EventCtrlAltDel:
		s.logger.Notice("Reboot requested (ctrlaltdel)")
		s.runActionEntry(ctx, s.table.CtrlAltDel())
		if err := s.TransitionTo(ctx, s.cfg.RebootRunlevel); err != nil {
			s.logger.Error("Reboot transition: %v", err)
		}
		s.finalType = shutdown.Reboot

	case EventShutdown:
		s.logger.Notice("Shutdown requested (%s)", ev.Shutdown)
		s.runActionEntry(ctx, s.table.Shutdown())
		if err := s.TransitionTo(ctx, s.cfg.HaltRunlevel); err != nil {
			s.logger.Error("Shutdown transition: %v", err)
		}
		if ev.Shutdown == shutdown.None {
			ev.Shutdown = shutdown.Halt
		}
		s.finalType = ev.Shutdown

	case EventRestart:
		s.logger.Notice("Supervisor restart requested")
		s.runActionEntry(ctx, s.table.Restart())
		s.finalType = shutdown.ReExec

	case EventRunlevel:
		level, err := util.NormalizeRunlevel(ev.Runlevel)
		if err != nil {
			s.logger.Error("Runlevel change rejected: %v", err)
			return
		}
		// Runlevels 0 and 6 are shutdown states, not steady states.
		switch level {
		case s.cfg.HaltRunlevel:
			s.handleEvent(ctx, Event{Kind: EventShutdown, Shutdown: shutdown.Halt})
		case s.cfg.RebootRunlevel:
			s.handleEvent(ctx, Event{Kind: EventCtrlAltDel})
		default:
			if err := s.TransitionTo(ctx, level); err != nil {
				s.logger.Error("Runlevel change: %v", err)
			}
		}

	case EventReload:
		s.reload()
	}
}

// TransitionTo delegates to the runlevel executor and blocks until every
// stop-then-start script for the level has been invoked. Script failures
// are recorded by the executor, never escalated; a failing service does
// not block the transition.
func (s *Supervisor) TransitionTo(ctx context.Context, level string) error {
	level, err := util.NormalizeRunlevel(level)
	if err != nil {
		return err
	}

	s.logger.Notice("Switching to runlevel %s", level)
	results := s.executor.Execute(ctx, level)

	failed := 0
	for _, r := range results {
		if r.Failed() {
			failed++
		}
	}
	if failed > 0 {
		s.logger.Warn("Runlevel %s: %d of %d script invocations failed", level, failed, len(results))
	}

	prev := s.CurrentRunlevel()
	s.levelMu.Lock()
	s.prevLevel = prev
	s.currentLevel = level
	s.levelMu.Unlock()
	if err := writeRunlevelRecord(s.cfg.StateDir, prev, level); err != nil {
		s.logger.Warn("Could not write runlevel record: %v", err)
	}
	s.logger.RunlevelChanged(level)
	return nil
}

// runSysinit executes the sysinit entry synchronously to completion. Its
// exit code is ignored: boot must proceed regardless, mirroring
// best-effort hardware bring-up.
func (s *Supervisor) runSysinit(ctx context.Context) {
	entry := s.table.Sysinit()
	if entry == nil {
		return
	}

	s.logger.Info("Running sysinit '%s'", entry.ID)
	exit, err := process.RunBounded(ctx, process.ExecParams{Command: entry.Command})
	if err != nil {
		s.logger.Warn("Sysinit '%s': %v (continuing)", entry.ID, err)
		return
	}
	if !exit.ExitedClean() {
		s.logger.Warn("Sysinit '%s' exited with status %d (continuing)", entry.ID, exit.ExitCode())
	}
}

// runWaitEntries executes the wait-class entries synchronously in table
// order. Exit codes are logged and ignored.
func (s *Supervisor) runWaitEntries(ctx context.Context) {
	for _, entry := range s.table.Wait() {
		s.logger.Info("Running '%s' (wait)", entry.ID)
		exit, err := process.RunBounded(ctx, process.ExecParams{Command: entry.Command})
		if err != nil {
			s.logger.Warn("Entry '%s': %v (continuing)", entry.ID, err)
			continue
		}
		if !exit.ExitedClean() {
			s.logger.Warn("Entry '%s' exited with status %d (continuing)", entry.ID, exit.ExitCode())
		}
	}
}

// runActionEntry executes a ctrlaltdel/shutdown/restart entry, bounded by
// the script timeout so a hung handler cannot stall the shutdown path.
func (s *Supervisor) runActionEntry(ctx context.Context, entry *inittab.Entry) {
	if entry == nil {
		return
	}

	runCtx, cancel := context.WithTimeout(ctx, s.cfg.ScriptTimeout)
	defer cancel()

	s.logger.Info("Running '%s' (%s)", entry.ID, entry.Action)
	exit, err := process.RunBounded(runCtx, process.ExecParams{Command: entry.Command})
	if err != nil {
		s.logger.Warn("Entry '%s': %v (continuing)", entry.ID, err)
		return
	}
	if !exit.ExitedClean() {
		s.logger.Warn("Entry '%s' exited with status %d (continuing)", entry.ID, exit.ExitCode())
	}
}

// startMonitors creates one respawn monitor per respawn entry. Monitors
// are fully concurrent with each other: failure or slowness of one entry
// never blocks another.
func (s *Supervisor) startMonitors(ctx context.Context) {
	s.groupCtx, s.groupCancel = context.WithCancel(ctx)
	s.group = &errgroup.Group{}

	for _, entry := range s.table.Respawn() {
		s.startMonitor(entry)
	}
}

func (s *Supervisor) startMonitor(entry inittab.Entry) {
	monitor := newRespawnMonitor(entry, s.logger, s.cfg.RespawnDelay)
	mctx, cancel := context.WithCancel(s.groupCtx)
	monitor.cancel = cancel
	done := make(chan struct{})
	s.monitors[entry.ID] = monitorSlot{monitor: monitor, cancel: cancel, done: done}
	s.group.Go(func() error {
		defer close(done)
		return monitor.run(mctx)
	})
}

// stopMonitors cancels all respawn monitors and waits for their children
// to be collected.
func (s *Supervisor) stopMonitors() {
	if s.group == nil {
		return
	}
	s.groupCancel()
	_ = s.group.Wait()
	s.group = nil
	s.monitors = make(map[string]monitorSlot)
}

// reload re-reads the inittab and reconciles the respawn monitors with the
// new table. A malformed table is rejected and the old one stays live: a
// running system never adopts a bad configuration.
//
// The sysinit and wait entries of the new table are not re-run; they are
// boot-time actions. Respawn entries are reconciled by id: removed ids
// have their monitor (and child) stopped, new ids gain a monitor, and an
// id whose command changed is restarted under the new command.
func (s *Supervisor) reload() {
	table, err := inittab.Load(s.cfg.InittabPath)
	if err != nil {
		s.logger.Error("Inittab reload rejected: %v", err)
		return
	}
	s.table = table

	if s.group == nil {
		return
	}

	next := make(map[string]inittab.Entry)
	for _, entry := range table.Respawn() {
		next[entry.ID] = entry
	}

	for id, slot := range s.monitors {
		entry, keep := next[id]
		if keep && commandEqual(entry.Command, slot.monitor.entry.Command) {
			delete(next, id)
			continue
		}
		if keep {
			s.logger.Info("Respawn '%s' command changed, restarting", id)
		} else {
			s.logger.Info("Respawn '%s' removed, stopping", id)
		}
		slot.cancel()
		// Wait for the old child to be collected before a replacement
		// monitor may launch; one live child per id, always.
		<-slot.done
		delete(s.monitors, id)
	}

	for _, entry := range next {
		s.logger.Info("Respawn '%s' added", entry.ID)
		s.startMonitor(entry)
	}

	s.logger.Notice("Inittab reloaded (%d entries)", len(table.Entries))
}

func commandEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
