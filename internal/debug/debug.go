// Package debug provides opt-in diagnostic logging for the build pipeline.
// Output is silent by default; a CLI entry point wires a writer once at
// startup via SetDebugOutput or InitDebugLogFile.
package debug

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// EnableDebug can be overridden at build time:
// go build -ldflags "-X github.com/standardbeagle/fab/internal/debug.EnableDebug=true"
var EnableDebug = "false"

var (
	debugOutput io.Writer
	debugFile   *os.File
	debugMutex  sync.Mutex
)

// SetDebugOutput sets a custom writer for debug output. Pass nil to disable.
func SetDebugOutput(w io.Writer) {
	debugMutex.Lock()
	defer debugMutex.Unlock()
	debugOutput = w
}

// InitDebugLogFile initializes debug logging to a timestamped file under
// $FAB_WORKSPACE/<project>/metrics/debug-logs and returns its path.
func InitDebugLogFile(workspaceMetricsDir string) (string, error) {
	debugMutex.Lock()
	defer debugMutex.Unlock()

	logDir := filepath.Join(workspaceMetricsDir, "debug-logs")
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create debug log directory: %w", err)
	}

	timestamp := time.Now().Format("2006-01-02T150405")
	logPath := filepath.Join(logDir, fmt.Sprintf("debug-%s.log", timestamp))

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return "", fmt.Errorf("failed to create debug log file: %w", err)
	}

	debugFile = file
	debugOutput = file
	return logPath, nil
}

// CloseDebugLog closes the debug log file if one is open.
func CloseDebugLog() error {
	debugMutex.Lock()
	defer debugMutex.Unlock()

	if debugFile != nil {
		err := debugFile.Close()
		debugFile = nil
		debugOutput = nil
		return err
	}
	return nil
}

// IsDebugEnabled reports whether debug output should be emitted.
func IsDebugEnabled() bool {
	if EnableDebug == "true" {
		return true
	}
	v := os.Getenv("FAB_DEBUG")
	return v == "1" || v == "true"
}

func getDebugWriter() io.Writer {
	debugMutex.Lock()
	defer debugMutex.Unlock()
	return debugOutput
}

// Log provides structured debug logging tagged with a component name.
func Log(component, format string, args ...interface{}) {
	if !IsDebugEnabled() {
		return
	}
	w := getDebugWriter()
	if w == nil {
		return
	}
	fmt.Fprintf(w, "[DEBUG:%s] "+format+"\n", append([]interface{}{component}, args...)...)
}

// LogAnalysis logs analyser activity (Fortran/C parsing, symbol extraction).
func LogAnalysis(format string, args ...interface{}) { Log("ANALYSE", format, args...) }

// LogSchedule logs build scheduler activity (level changes, compiles).
func LogSchedule(format string, args ...interface{}) { Log("SCHEDULE", format, args...) }

// LogCache logs cache hit/miss/eviction activity.
func LogCache(format string, args ...interface{}) { Log("CACHE", format, args...) }

// LogTool logs external tool invocations.
func LogTool(format string, args ...interface{}) { Log("TOOL", format, args...) }

// Fatal formats a fatal condition as an error rather than exiting, so the
// pipeline driver can decide how to surface it.
func Fatal(format string, args ...interface{}) error {
	msg := fmt.Sprintf(format, args...)
	if w := getDebugWriter(); w != nil {
		fmt.Fprintf(w, "[FATAL] %s\n", msg)
	}
	return fmt.Errorf("fatal error: %s", msg)
}
