// Package rc implements the runlevel script table and the ordered
// stop-then-start executor that drives runlevel transitions.
package rc

import (
	"fmt"
	"sort"

	"github.com/sparrowlinux/svinit/internal/util"
)

// Mode says whether a script reference brings its service up or down.
type Mode uint8

const (
	ModeStart Mode = iota // "S" prefix
	ModeStop              // "K" prefix
)

func (m Mode) String() string {
	switch m {
	case ModeStart:
		return "start"
	case ModeStop:
		return "stop"
	default:
		return fmt.Sprintf("Mode(%d)", m)
	}
}

// ScriptRef is one entry of the runlevel table: a reference (not ownership)
// to a service script, with the priority that orders it within its
// (runlevel, mode) pair.
type ScriptRef struct {
	// Runlevel is "0".."6" or the pseudo-level "S".
	Runlevel string

	// Order is the two-digit priority, 0-99. Within one runlevel and
	// mode, execution is strictly ascending by Order. Ties are undefined;
	// scripts must be idempotent and must not rely on tie order.
	Order int

	// Mode is start or stop.
	Mode Mode

	// Name is the descriptive suffix ("network", "syslog").
	Name string

	// Target is the path of the service script to invoke.
	Target string
}

// Table is the explicit ordered runlevel table. The S/K directory naming
// convention is only the on-disk serialization; once loaded, this table is
// the design element the executor works from. It is read-only after load.
type Table struct {
	refs map[string][]ScriptRef
}

// NewTable creates an empty runlevel table.
func NewTable() *Table {
	return &Table{refs: make(map[string][]ScriptRef)}
}

// Add inserts a script reference, validating its runlevel and order.
func (t *Table) Add(ref ScriptRef) error {
	level, err := util.NormalizeRunlevel(ref.Runlevel)
	if err != nil {
		return err
	}
	if ref.Order < 0 || ref.Order > 99 {
		return fmt.Errorf("order %d out of range for %q (want 0-99)", ref.Order, ref.Name)
	}
	ref.Runlevel = level
	t.refs[level] = append(t.refs[level], ref)
	return nil
}

// Refs returns the references for one runlevel and mode, ascending by
// order. The sort is stable so a given table always replays identically.
func (t *Table) Refs(level string, mode Mode) []ScriptRef {
	var out []ScriptRef
	for _, ref := range t.refs[level] {
		if ref.Mode == mode {
			out = append(out, ref)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Order < out[j].Order
	})
	return out
}

// Levels returns the runlevels that have at least one reference.
func (t *Table) Levels() []string {
	levels := make([]string, 0, len(t.refs))
	for level := range t.refs {
		levels = append(levels, level)
	}
	sort.Strings(levels)
	return levels
}

// ConfigError represents a malformed runlevel reference table.
// Like a malformed inittab it is fatal at load time.
type ConfigError struct {
	Path    string
	Message string
}

func (e *ConfigError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	return e.Message
}
