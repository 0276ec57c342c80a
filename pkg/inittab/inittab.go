// Package inittab implements parsing and validation of the inittab table,
// the declarative configuration consumed by the svinit supervisor at start.
package inittab

import (
	"fmt"
)

// Action determines the scheduling semantics of an inittab entry.
type Action uint8

const (
	ActionSysinit    Action = iota // Run once, synchronously, before any runlevel transition
	ActionWait                     // Run once at boot, synchronously, after the default transition
	ActionRespawn                  // Keep running; relaunch whenever it exits
	ActionCtrlAltDel               // Run when a reboot request (ctrl-alt-del) is received
	ActionShutdown                 // Run when an administrative shutdown is requested
	ActionRestart                  // Run before the supervisor re-execs itself
)

func (a Action) String() string {
	switch a {
	case ActionSysinit:
		return "sysinit"
	case ActionWait:
		return "wait"
	case ActionRespawn:
		return "respawn"
	case ActionCtrlAltDel:
		return "ctrlaltdel"
	case ActionShutdown:
		return "shutdown"
	case ActionRestart:
		return "restart"
	default:
		return fmt.Sprintf("Action(%d)", a)
	}
}

// ParseAction converts an action class name to an Action.
func ParseAction(s string) (Action, error) {
	switch s {
	case "sysinit":
		return ActionSysinit, nil
	case "wait":
		return ActionWait, nil
	case "respawn":
		return ActionRespawn, nil
	case "ctrlaltdel":
		return ActionCtrlAltDel, nil
	case "shutdown":
		return ActionShutdown, nil
	case "restart":
		return ActionRestart, nil
	default:
		return 0, fmt.Errorf("unknown action class: %q", s)
	}
}

// Entry is a single inittab record.
type Entry struct {
	// ID is the stable identifier, unique per entry. It is the
	// de-duplication key for respawn bookkeeping.
	ID string

	// Action determines when and how Command runs.
	Action Action

	// Command is the program and its arguments.
	Command []string
}

// Table is the validated, ordered inittab. It is read-only after Parse;
// no concurrent writer exists.
type Table struct {
	Entries []Entry
}

// Sysinit returns the table's sysinit entry, or nil if there is none.
// Validation guarantees at most one exists.
func (t *Table) Sysinit() *Entry {
	return t.first(ActionSysinit)
}

// CtrlAltDel returns the ctrlaltdel entry, or nil.
func (t *Table) CtrlAltDel() *Entry {
	return t.first(ActionCtrlAltDel)
}

// Shutdown returns the shutdown entry, or nil.
func (t *Table) Shutdown() *Entry {
	return t.first(ActionShutdown)
}

// Restart returns the restart entry, or nil.
func (t *Table) Restart() *Entry {
	return t.first(ActionRestart)
}

func (t *Table) first(a Action) *Entry {
	for i := range t.Entries {
		if t.Entries[i].Action == a {
			return &t.Entries[i]
		}
	}
	return nil
}

// Wait returns the wait-class entries in table order.
func (t *Table) Wait() []Entry {
	return t.byAction(ActionWait)
}

// Respawn returns the respawn-class entries in table order.
func (t *Table) Respawn() []Entry {
	return t.byAction(ActionRespawn)
}

func (t *Table) byAction(a Action) []Entry {
	var out []Entry
	for _, e := range t.Entries {
		if e.Action == a {
			out = append(out, e)
		}
	}
	return out
}

// ConfigError represents a malformed inittab. It is fatal at load time
// and aborts boot before any script executes.
type ConfigError struct {
	FileName string
	Line     int
	Message  string
}

func (e *ConfigError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", e.FileName, e.Line, e.Message)
	}
	if e.FileName != "" {
		return fmt.Sprintf("%s: %s", e.FileName, e.Message)
	}
	return e.Message
}
