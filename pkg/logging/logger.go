// Package logging implements the svinit logging subsystem.
package logging

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// Level represents the logging level.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelNotice
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelNotice:
		return "NOTICE"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a level name to a Level. Unknown names map to info.
func ParseLevel(s string) Level {
	switch s {
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "notice":
		return LevelNotice
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Logger provides leveled logging for svinit. As PID 1 the output goes to
// the console (stderr); tests may redirect it with SetOutput.
type Logger struct {
	mu    sync.Mutex
	level Level
	out   io.Writer
}

// New creates a new Logger with the specified minimum level.
func New(level Level) *Logger {
	return &Logger{level: level, out: os.Stderr}
}

// SetLevel changes the minimum logging level.
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// SetOutput redirects log output to w.
func (l *Logger) SetOutput(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.out = w
}

func (l *Logger) log(level Level, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if level < l.level {
		return
	}
	msg := fmt.Sprintf(format, args...)
	timestamp := time.Now().Format("15:04:05")
	fmt.Fprintf(l.out, "[%s] %s: %s\n", timestamp, level, msg)
}

// Debug logs at debug level.
func (l *Logger) Debug(format string, args ...interface{}) {
	l.log(LevelDebug, format, args...)
}

// Info logs at info level.
func (l *Logger) Info(format string, args ...interface{}) {
	l.log(LevelInfo, format, args...)
}

// Notice logs at notice level.
func (l *Logger) Notice(format string, args ...interface{}) {
	l.log(LevelNotice, format, args...)
}

// Warn logs at warn level.
func (l *Logger) Warn(format string, args ...interface{}) {
	l.log(LevelWarn, format, args...)
}

// Error logs at error level.
func (l *Logger) Error(format string, args ...interface{}) {
	l.log(LevelError, format, args...)
}

// ScriptFailed logs a non-fatal service script failure.
func (l *Logger) ScriptFailed(script string, verb string, err error) {
	l.log(LevelWarn, "Script '%s %s' failed: %v (continuing)", script, verb, err)
}

// ScriptTimedOut logs a script that exceeded its bounded wait.
func (l *Logger) ScriptTimedOut(script string, verb string) {
	l.log(LevelError, "Script '%s %s' did not return in time, possible hang", script, verb)
}

// ChildRespawned logs a respawn-class child being relaunched.
func (l *Logger) ChildRespawned(id string, pid int) {
	l.log(LevelInfo, "Respawned '%s' (pid %d)", id, pid)
}

// RunlevelChanged logs a completed runlevel transition.
func (l *Logger) RunlevelChanged(level string) {
	l.log(LevelNotice, "Now at runlevel %s", level)
}
