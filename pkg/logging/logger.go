// Package logging reports compiler progress and errors to the terminal with
// pterm styles. Output is filtered by a log level set once at startup.
package logging

import (
	"strings"
	"sync"
)

// Enumeration of the different log levels
const (
	LogLevelSilent  = iota // no output at all
	LogLevelError          // only errors and the closing summary
	LogLevelWarning        // errors, warnings, and the closing summary
	LogLevelVerbose        // everything, including phase spinners (DEFAULT)
)

// Logger stores and displays output from the compiler
type Logger struct {
	LogLevel int

	errorCount int
	warnings   []string

	// m serializes printing
	m sync.Mutex
}

// logger is the shared Logger used by the package level functions
var logger = &Logger{LogLevel: LogLevelVerbose}

// LevelFromName maps a configured level name to a log level. Unknown names
// default to verbose.
func LevelFromName(name string) int {
	switch name {
	case "silent":
		return LogLevelSilent
	case "error":
		return LogLevelError
	case "warning":
		return LogLevelWarning
	default:
		return LogLevelVerbose
	}
}

// Initialize resets the shared logger with the provided log level name
func Initialize(levelName string) {
	logger = &Logger{LogLevel: LevelFromName(levelName)}
}

// ShouldProceed indicates whether no errors have been reported so far
func ShouldProceed() bool {
	return logger.ErrorCount() == 0
}

// ReportCompileError counts err and, unless silent, prints it with the source
// line it refers to.
func ReportCompileError(file, src string, err error) {
	logger.m.Lock()
	defer logger.m.Unlock()

	logger.errorCount++
	if logger.LogLevel > LogLevelSilent {
		displayEndPhase(false)
		displayCompileError(file, strings.Split(src, "\n"), err)
	}
}

// ReportWarning records a warning; warnings are printed by Finish.
func ReportWarning(msg string) {
	logger.m.Lock()
	defer logger.m.Unlock()
	logger.warnings = append(logger.warnings, msg)
}

// BeginPhase starts a progress spinner for a compilation phase at verbose level
func BeginPhase(phase string) {
	if logger.LogLevel == LogLevelVerbose {
		displayBeginPhase(phase)
	}
}

// EndPhase stops the current spinner
func EndPhase(success bool) {
	if logger.LogLevel == LogLevelVerbose {
		displayEndPhase(success)
	}
}

// Finish prints buffered warnings and the closing summary.
func Finish() {
	logger.m.Lock()
	defer logger.m.Unlock()

	if logger.LogLevel >= LogLevelWarning {
		for _, w := range logger.warnings {
			PrintWarningMessage("Warning", w)
		}
	}
	if logger.LogLevel > LogLevelSilent {
		displayFinished(logger.errorCount, len(logger.warnings))
	}
}

func (l *Logger) ErrorCount() int {
	l.m.Lock()
	defer l.m.Unlock()
	return l.errorCount
}

func (l *Logger) WarningCount() int {
	l.m.Lock()
	defer l.m.Unlock()
	return len(l.warnings)
}

// Current returns the shared logger.
func Current() *Logger {
	return logger
}
