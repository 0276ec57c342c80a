package supervisor

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sparrowlinux/svinit/pkg/shutdown"
)

// EventKind identifies a control event consumed by the supervisor's
// steady-state loop. OS signal delivery and control socket requests both
// translate into Events, decoupling delivery mechanics from the
// state-transition logic.
type EventKind uint8

const (
	EventCtrlAltDel EventKind = iota // Reboot request
	EventShutdown                    // Administrative shutdown request
	EventRestart                     // Re-exec request
	EventRunlevel                    // Manual runlevel change
	EventReload                      // Re-read the inittab
)

func (k EventKind) String() string {
	switch k {
	case EventCtrlAltDel:
		return "ctrlaltdel"
	case EventShutdown:
		return "shutdown"
	case EventRestart:
		return "restart"
	case EventRunlevel:
		return "runlevel"
	case EventReload:
		return "reload"
	default:
		return fmt.Sprintf("EventKind(%d)", k)
	}
}

// Event is one control event.
type Event struct {
	Kind EventKind

	// Runlevel is the target level for EventRunlevel.
	Runlevel string

	// Shutdown distinguishes halt from poweroff for EventShutdown.
	Shutdown shutdown.Type
}

// setupSignals registers the signals the supervisor recognizes and returns
// the delivery channel.
//
// Signal map (PID 1 semantics):
//
//	SIGINT  - reboot request; the kernel delivers SIGINT to PID 1 on
//	          Ctrl+Alt+Del once CAD is disabled
//	SIGTERM - administrative shutdown (halt)
//	SIGUSR1 - administrative shutdown (poweroff)
//	SIGUSR2 - re-exec request
//	SIGHUP  - reload the inittab
func setupSignals() chan os.Signal {
	sigCh := make(chan os.Signal, 8)
	signal.Notify(sigCh,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGUSR1,
		syscall.SIGUSR2,
		syscall.SIGHUP,
	)
	return sigCh
}

// stopSignals removes the signal handlers.
func stopSignals(sigCh chan os.Signal) {
	signal.Stop(sigCh)
}

// mapSignal translates a delivered signal into its Event, if any.
func mapSignal(sig os.Signal) (Event, bool) {
	sysSignal, ok := sig.(syscall.Signal)
	if !ok {
		return Event{}, false
	}

	switch sysSignal {
	case syscall.SIGINT:
		return Event{Kind: EventCtrlAltDel}, true
	case syscall.SIGTERM:
		return Event{Kind: EventShutdown, Shutdown: shutdown.Halt}, true
	case syscall.SIGUSR1:
		return Event{Kind: EventShutdown, Shutdown: shutdown.Poweroff}, true
	case syscall.SIGUSR2:
		return Event{Kind: EventRestart}, true
	case syscall.SIGHUP:
		return Event{Kind: EventReload}, true
	}

	return Event{}, false
}
