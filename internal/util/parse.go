// Package util provides internal utility functions for svinit.
package util

import (
	"fmt"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// ValidRunlevel reports whether s names a runlevel: 0-6 or the
// single-user pseudo-level "S".
func ValidRunlevel(s string) bool {
	if s == "S" || s == "s" {
		return true
	}
	if len(s) != 1 {
		return false
	}
	return s[0] >= '0' && s[0] <= '6'
}

// NormalizeRunlevel canonicalizes a runlevel name ("s" becomes "S").
func NormalizeRunlevel(s string) (string, error) {
	if !ValidRunlevel(s) {
		return "", fmt.Errorf("invalid runlevel: %q", s)
	}
	if s == "s" {
		return "S", nil
	}
	return s, nil
}

// ParseDuration parses a duration string in seconds (decimal).
func ParseDuration(s string) (time.Duration, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration: %w", err)
	}
	return time.Duration(f * float64(time.Second)), nil
}

// ParseSignal parses a signal name (e.g., "SIGTERM", "TERM") or number.
func ParseSignal(s string) (syscall.Signal, error) {
	signals := map[string]syscall.Signal{
		"SIGHUP":  syscall.SIGHUP,
		"SIGINT":  syscall.SIGINT,
		"SIGQUIT": syscall.SIGQUIT,
		"SIGKILL": syscall.SIGKILL,
		"SIGTERM": syscall.SIGTERM,
		"SIGUSR1": syscall.SIGUSR1,
		"SIGUSR2": syscall.SIGUSR2,
	}

	upper := strings.ToUpper(s)
	if sig, ok := signals[upper]; ok {
		return sig, nil
	}
	if sig, ok := signals["SIG"+upper]; ok {
		return sig, nil
	}

	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("unknown signal: %s", s)
	}
	return syscall.Signal(n), nil
}

// SplitCommand splits a command line on whitespace. The inittab format does
// not support quoting; commands needing shell features wrap themselves in
// "sh -c".
func SplitCommand(s string) []string {
	return strings.Fields(s)
}
