// Package log provides a global logger with configurable logging level for
// development and device builds.
package log

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

type Level int

const (
	LevelNone    Level = iota // Disables logging.
	LevelError                // Logs failures that stop the device.
	LevelWarning              // Logs recoverable anomalies, such as handshake retries.
	LevelInfo                 // Logs major events.
	LevelDebug                // Logs per-message IO.
)

var labels = map[Level]string{
	LevelDebug:   "[debug]",
	LevelInfo:    "[info ]",
	LevelWarning: "[warn ]",
	LevelError:   "[error]",
}

var (
	mu          sync.Mutex
	globalLevel Level
	output      io.Writer = os.Stderr
)

func SetLevel(level Level) {
	mu.Lock()
	defer mu.Unlock()
	globalLevel = level
}

// SetOutput redirects log output, primarily so tests can capture it.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
}

func emit(level Level, format string, a ...interface{}) {
	mu.Lock()
	defer mu.Unlock()
	if level > globalLevel || level == LevelNone {
		return
	}
	msg := fmt.Sprintf("%s %s ", time.Now().Format(time.RFC3339), labels[level])
	msg += fmt.Sprintf(format, a...)
	fmt.Fprintln(output, msg)
}

func Debug(format string, a ...interface{}) {
	emit(LevelDebug, format, a...)
}
func Info(format string, a ...interface{}) {
	emit(LevelInfo, format, a...)
}
func Warning(format string, a ...interface{}) {
	emit(LevelWarning, format, a...)
}
func Error(format string, a ...interface{}) {
	emit(LevelError, format, a...)
}
