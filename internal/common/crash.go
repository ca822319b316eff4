// -----------------------------------------------------------------------
// Crash Protection - Fatal error handling and crash file generation
// -----------------------------------------------------------------------

package common

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

// CrashDir is where crash reports are written. Set by InstallCrashHandler.
var CrashDir = "./logs"

// InstallCrashHandler prepares the crash report directory.
// Pair it with a deferred RecoverWithCrashFile at the top of main.
func InstallCrashHandler(dir string) {
	if dir != "" {
		CrashDir = dir
	}

	if err := os.MkdirAll(CrashDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "CRASH: Failed to create crash directory: %v\n", err)
	}
}

// FormatCrashReport renders the panic, its stack and the runtime state of the worker
func FormatCrashReport(panicVal interface{}, stackTrace string, at time.Time) string {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	var b strings.Builder
	fmt.Fprintf(&b, "=== AMAZON CLIENT CRASH REPORT ===\n")
	fmt.Fprintf(&b, "Time: %s\n", at.Format(time.RFC3339))
	fmt.Fprintf(&b, "Version: %s\n\n", GetFullVersion())
	fmt.Fprintf(&b, "=== PANIC ===\n%v\n\n", panicVal)
	fmt.Fprintf(&b, "=== STACK ===\n%s\n\n", stackTrace)
	fmt.Fprintf(&b, "=== RUNTIME ===\n")
	fmt.Fprintf(&b, "Goroutines: %d (spawned via SafeGo: %d)\n", runtime.NumGoroutine(), GetGoroutineCount())
	fmt.Fprintf(&b, "Alloc: %d MB, Sys: %d MB, NumGC: %d\n\n", memStats.Alloc/1024/1024, memStats.Sys/1024/1024, memStats.NumGC)
	fmt.Fprintf(&b, "=== ALL GOROUTINES ===\n%s\n", GetAllGoroutineStacks())
	return b.String()
}

// WriteCrashFile writes a crash report and returns its path, or "" when
// only stderr could be written.
func WriteCrashFile(panicVal interface{}, stackTrace string) string {
	now := time.Now()
	report := FormatCrashReport(panicVal, stackTrace, now)
	crashPath := filepath.Join(CrashDir, fmt.Sprintf("crash-%s.log", now.Format("2006-01-02T15-04-05")))

	if err := os.WriteFile(crashPath, []byte(report), 0644); err != nil {
		fmt.Fprintf(os.Stderr, "CRASH: Failed to write crash file: %v\n%s", err, report)
		return ""
	}

	fmt.Fprintf(os.Stderr, "\n!!! FATAL CRASH - Report saved to: %s !!!\nPanic: %v\n", crashPath, panicVal)
	return crashPath
}

// GetAllGoroutineStacks returns stack traces for all goroutines, capped at 64MB
func GetAllGoroutineStacks() string {
	buf := make([]byte, 64*1024)
	for {
		n := runtime.Stack(buf, true)
		if n < len(buf) || len(buf) >= 64*1024*1024 {
			return string(buf[:n])
		}
		buf = make([]byte, len(buf)*2)
	}
}

// RecoverWithCrashFile writes a crash file for a panic on the main goroutine and exits.
// Usage: defer common.RecoverWithCrashFile()
func RecoverWithCrashFile() {
	if r := recover(); r != nil {
		buf := make([]byte, 8192)
		n := runtime.Stack(buf, false)
		WriteCrashFile(r, string(buf[:n]))
		os.Exit(1)
	}
}
