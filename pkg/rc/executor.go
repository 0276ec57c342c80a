package rc

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/sparrowlinux/svinit/pkg/logging"
	"github.com/sparrowlinux/svinit/pkg/process"
)

// Verb is passed to a service script as its single argument.
type Verb string

const (
	VerbStart   Verb = "start"
	VerbStop    Verb = "stop"
	VerbRestart Verb = "restart"
)

// DefaultScriptTimeout is the bounded wait applied to each script
// invocation. The value is a policy choice, not a correctness requirement,
// and is configurable via WithScriptTimeout.
const DefaultScriptTimeout = 30 * time.Second

// ScriptResult records the outcome of one script invocation. Script
// failures are recorded, never escalated: a failing or hanging service
// must not prevent the rest of the transition.
type ScriptResult struct {
	Ref      ScriptRef
	Verb     Verb
	Skipped  bool // script missing or not executable
	TimedOut bool // bounded wait expired; logged as a possible hang
	ExitCode int  // -1 when the script did not exit normally
	Err      error
	Duration time.Duration
}

// Failed reports whether the invocation is a recorded failure
// (non-zero exit, exec failure, or timeout).
func (r ScriptResult) Failed() bool {
	return !r.Skipped && (r.Err != nil || r.TimedOut || r.ExitCode != 0)
}

// Executor performs deterministic, ordered execution of stop-then-start
// scripts for a target runlevel. It is invoked by, and reports only to,
// the supervisor; transitions therefore never run concurrently.
type Executor struct {
	table         *Table
	logger        *logging.Logger
	scriptTimeout time.Duration
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithScriptTimeout overrides the bounded wait per script invocation.
// A zero or negative timeout means scripts may run unbounded.
func WithScriptTimeout(d time.Duration) ExecutorOption {
	return func(e *Executor) { e.scriptTimeout = d }
}

// NewExecutor creates an Executor over the given runlevel table.
func NewExecutor(table *Table, logger *logging.Logger, opts ...ExecutorOption) *Executor {
	e := &Executor{
		table:         table,
		logger:        logger,
		scriptTimeout: DefaultScriptTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs the transition to the given runlevel: all stop-mode
// references in ascending order, then all start-mode references in
// ascending order. Each script runs to completion (or bounded timeout)
// before the next begins, so the dependency ordering encoded in the
// numeric prefixes is respected.
//
// Execute returns once every script has been invoked; per-script failures
// are in the returned results, not in an error.
func (e *Executor) Execute(ctx context.Context, level string) []ScriptResult {
	var results []ScriptResult

	for _, ref := range e.table.Refs(level, ModeStop) {
		results = append(results, e.runScript(ctx, ref, VerbStop))
	}
	for _, ref := range e.table.Refs(level, ModeStart) {
		results = append(results, e.runScript(ctx, ref, VerbStart))
	}

	return results
}

func (e *Executor) runScript(ctx context.Context, ref ScriptRef, verb Verb) ScriptResult {
	result := ScriptResult{Ref: ref, Verb: verb, ExitCode: -1}

	if !isExecutable(ref.Target) {
		// Not an error: permits sparse runlevels.
		e.logger.Debug("Skipping '%s' (%s): not executable", ref.Target, verb)
		result.Skipped = true
		return result
	}

	e.logger.Info("Running '%s %s' (runlevel %s, order %02d)", ref.Target, verb, ref.Runlevel, ref.Order)

	runCtx := ctx
	cancel := context.CancelFunc(func() {})
	if e.scriptTimeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, e.scriptTimeout)
	}
	defer cancel()

	begin := time.Now()
	exit, err := process.RunBounded(runCtx, process.ExecParams{
		Command: []string{ref.Target, string(verb)},
	})
	result.Duration = time.Since(begin)

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		result.TimedOut = true
		e.logger.ScriptTimedOut(ref.Target, string(verb))

	case err != nil:
		result.Err = err
		e.logger.ScriptFailed(ref.Target, string(verb), err)

	default:
		result.ExitCode = exit.ExitCode()
		if !exit.ExitedClean() {
			// Advisory exit code: recorded, boot proceeds.
			e.logger.Warn("Script '%s %s' exited with status %d (continuing)",
				ref.Target, verb, result.ExitCode)
		}
	}

	return result
}

// isExecutable reports whether path is a regular file with at least one
// execute bit set. Symlink targets are followed.
func isExecutable(path string) bool {
	fi, err := os.Stat(path)
	if err != nil {
		return false
	}
	return fi.Mode().IsRegular() && fi.Mode().Perm()&0111 != 0
}
