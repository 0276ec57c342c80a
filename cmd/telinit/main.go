// telinit is the control CLI for a running svinit supervisor.
// It communicates over the svinit control socket.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/sparrowlinux/svinit/pkg/control"
)

const defaultSocketPath = "/run/svinit.socket"

func main() {
	args := os.Args[1:]

	socketPath := defaultSocketPath
	for len(args) > 0 && strings.HasPrefix(args[0], "-") {
		switch {
		case args[0] == "--socket-path" || args[0] == "-s":
			if len(args) < 2 {
				fatal("--socket-path requires an argument")
			}
			socketPath = args[1]
			args = args[2:]
		case strings.HasPrefix(args[0], "--socket-path="):
			socketPath = strings.TrimPrefix(args[0], "--socket-path=")
			args = args[1:]
		case args[0] == "--help" || args[0] == "-h":
			printUsage()
			os.Exit(0)
		case args[0] == "--version":
			fmt.Println("telinit version 0.1.0")
			os.Exit(0)
		default:
			fatal("Unknown option: %s", args[0])
		}
	}

	if len(args) != 1 {
		printUsage()
		os.Exit(1)
	}

	client, err := control.Dial(socketPath)
	if err != nil {
		fatal("Failed to connect to svinit at %s: %v", socketPath, err)
	}
	defer client.Close()

	arg := args[0]
	switch arg {
	case "0":
		err = client.Shutdown(control.ShutdownHalt)
	case "6":
		err = client.Shutdown(control.ShutdownReboot)
	case "1", "2", "3", "4", "5", "S", "s":
		err = client.ChangeRunlevel(strings.ToUpper(arg))
	case "q", "Q":
		err = client.Reload()
	case "u", "U":
		err = client.ReExec()
	case "runlevel":
		var prev, current string
		prev, current, err = client.QueryRunlevel()
		if err == nil {
			fmt.Printf("%s %s\n", prev, current)
		}
	case "poweroff":
		err = client.Shutdown(control.ShutdownPoweroff)
	default:
		fatal("Unknown argument: %s", arg)
	}

	if err != nil {
		fatal("Error: %v", err)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `Usage: telinit [options] <arg>

Options:
  --socket-path, -s PATH   Control socket path (default %s)
  --help, -h               Show this help
  --version                Show version

Arguments:
  0                        Halt the system
  1-5, S                   Switch to the given runlevel
  6                        Reboot the system
  q                        Tell svinit to re-read its inittab
  u                        Tell svinit to re-exec itself
  poweroff                 Power the system off
  runlevel                 Print previous and current runlevel
`, defaultSocketPath)
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
