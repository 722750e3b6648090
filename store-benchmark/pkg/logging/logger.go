// =============================================================================
// pkg/logging/logger.go - Rank-Tagged Levelled Logging
// =============================================================================
//
// This package provides a logger that writes every message prefixed with the
// rank identity of the process, a microsecond timestamp, the logger name and
// the level:
//
//	[000002|4] [14:03:11.204518] [hepnos] [info] size=128, storage=..., ...
//
// OUTPUTS:
//   - The console writer (stdout by default), colourised when enabled
//   - An optional log file receiving every emitted message
//   - An optional error file receiving error and critical messages only
//
// SCOPED LOGGING:
//   WithScope() returns a child sharing the same outputs and level that tags
//   every message with the scope name:
//
//	storeLog := logger.WithScope("STORE")
//	storeLog.Info("started") // → [000000|4] [...] [hepnos] [info] [STORE] started
//
// =============================================================================

package logging

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fatih/color"

	"github.com/karthikiyer56/hepnos-store-benchmark/store-benchmark/pkg/interfaces"
	"github.com/karthikiyer56/hepnos-store-benchmark/store-benchmark/pkg/types"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// SeparatorLine is the visual separator used in logs
	SeparatorLine = "========================================================================="

	// TimeFormat is the timestamp format for log messages
	TimeFormat = "15:04:05.000000"
)

// levelLabels are the level names printed in the prefix.
var levelLabels = map[types.Verbosity]string{
	types.VerbosityTrace:    "trace",
	types.VerbosityDebug:    "debug",
	types.VerbosityInfo:     "info",
	types.VerbosityWarning:  "warning",
	types.VerbosityError:    "error",
	types.VerbosityCritical: "critical",
}

// levelColors are applied to the level label on the console only.
var levelColors = map[types.Verbosity]*color.Color{
	types.VerbosityTrace:    color.New(color.FgWhite),
	types.VerbosityDebug:    color.New(color.FgCyan),
	types.VerbosityInfo:     color.New(color.FgGreen),
	types.VerbosityWarning:  color.New(color.FgYellow, color.Bold),
	types.VerbosityError:    color.New(color.FgRed, color.Bold),
	types.VerbosityCritical: color.New(color.BgRed, color.FgWhite, color.Bold),
}

// =============================================================================
// Options
// =============================================================================

// Options configures a Logger.
type Options struct {
	// Identity is printed as the "[rank|size]" prefix.
	Identity types.ProcessIdentity

	// Name is printed after the timestamp. Defaults to types.LoggerName.
	Name string

	// Level is the initial verbosity threshold.
	Level types.Verbosity

	// Console receives every emitted message. Defaults to os.Stdout.
	Console io.Writer

	// Color enables level colouring on the console. fatih/color still turns
	// it off when stdout is not a terminal.
	Color bool

	// LogPath, when set, receives a copy of every emitted message.
	LogPath string

	// ErrorPath, when set, receives error and critical messages.
	ErrorPath string
}

// =============================================================================
// Logger Implementation
// =============================================================================

// core holds the state shared by a logger and its scoped children.
type core struct {
	mu        sync.Mutex
	level     types.Verbosity
	prefix    string
	name      string
	console   io.Writer
	color     bool
	logFile   *os.File
	errorFile *os.File
	now       func() time.Time
}

// Logger implements interfaces.Logger.
type Logger struct {
	core  *core
	scope string
}

var _ interfaces.Logger = (*Logger)(nil)

// New creates a Logger. Log and error files are truncated when they exist.
func New(opts Options) (*Logger, error) {
	c := &core{
		level:   opts.Level,
		prefix:  fmt.Sprintf("[%06d|%d]", opts.Identity.Rank, opts.Identity.Size),
		name:    opts.Name,
		console: opts.Console,
		color:   opts.Color,
		now:     time.Now,
	}
	if c.name == "" {
		c.name = types.LoggerName
	}
	if c.console == nil {
		c.console = os.Stdout
	}

	if opts.LogPath != "" {
		f, err := os.OpenFile(opts.LogPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file %s: %w", opts.LogPath, err)
		}
		c.logFile = f
	}
	if opts.ErrorPath != "" {
		f, err := os.OpenFile(opts.ErrorPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
		if err != nil {
			if c.logFile != nil {
				c.logFile.Close()
			}
			return nil, fmt.Errorf("failed to open error file %s: %w", opts.ErrorPath, err)
		}
		c.errorFile = f
	}

	return &Logger{core: c}, nil
}

// SetLevel changes the verbosity threshold of the logger and all its children.
func (l *Logger) SetLevel(level types.Verbosity) {
	l.core.mu.Lock()
	defer l.core.mu.Unlock()
	l.core.level = level
}

// Enabled reports whether messages at level are emitted.
func (l *Logger) Enabled(level types.Verbosity) bool {
	l.core.mu.Lock()
	defer l.core.mu.Unlock()
	return level >= l.core.level && l.core.level != types.VerbosityOff
}

// WithScope creates a scoped logger.
// The scopes are combined: l.WithScope("A").WithScope("B") → [A:B]
func (l *Logger) WithScope(scope string) interfaces.Logger {
	if l.scope != "" {
		scope = l.scope + ":" + scope
	}
	return &Logger{core: l.core, scope: scope}
}

func (l *Logger) Trace(format string, args ...interface{}) {
	l.log(types.VerbosityTrace, format, args...)
}

func (l *Logger) Debug(format string, args ...interface{}) {
	l.log(types.VerbosityDebug, format, args...)
}

func (l *Logger) Info(format string, args ...interface{}) {
	l.log(types.VerbosityInfo, format, args...)
}

func (l *Logger) Warn(format string, args ...interface{}) {
	l.log(types.VerbosityWarning, format, args...)
}

func (l *Logger) Error(format string, args ...interface{}) {
	l.log(types.VerbosityError, format, args...)
}

func (l *Logger) Critical(format string, args ...interface{}) {
	l.log(types.VerbosityCritical, format, args...)
}

// Separator logs a visual separator line at info level.
func (l *Logger) Separator() {
	l.log(types.VerbosityInfo, "%s", SeparatorLine)
}

// Sync forces a flush of the log files.
func (l *Logger) Sync() {
	l.core.mu.Lock()
	defer l.core.mu.Unlock()

	if l.core.logFile != nil {
		l.core.logFile.Sync()
	}
	if l.core.errorFile != nil {
		l.core.errorFile.Sync()
	}
}

// Close closes the log files after syncing. The console writer is left open.
func (l *Logger) Close() {
	l.core.mu.Lock()
	defer l.core.mu.Unlock()

	if l.core.logFile != nil {
		l.core.logFile.Sync()
		l.core.logFile.Close()
		l.core.logFile = nil
	}
	if l.core.errorFile != nil {
		l.core.errorFile.Sync()
		l.core.errorFile.Close()
		l.core.errorFile = nil
	}
}

func (l *Logger) log(level types.Verbosity, format string, args ...interface{}) {
	c := l.core
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.level == types.VerbosityOff || level < c.level {
		return
	}

	msg := fmt.Sprintf(format, args...)
	label := levelLabels[level]
	timestamp := c.now().Format(TimeFormat)

	body := msg
	if l.scope != "" {
		body = "[" + l.scope + "] " + msg
	}

	plain := fmt.Sprintf("%s [%s] [%s] [%s] %s\n", c.prefix, timestamp, c.name, label, body)

	if c.color {
		fmt.Fprintf(c.console, "%s [%s] [%s] [%s] %s\n", c.prefix, timestamp, c.name, levelColors[level].Sprint(label), body)
	} else {
		io.WriteString(c.console, plain)
	}
	if c.logFile != nil {
		io.WriteString(c.logFile, plain)
	}
	if c.errorFile != nil && level >= types.VerbosityError {
		io.WriteString(c.errorFile, plain)
	}
}

// =============================================================================
// Shared Writers
// =============================================================================

// syncWriter serialises writes of loggers that do not share a core.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

// SyncWriter returns a writer safe for use by several loggers at once, such
// as the ranks of one process writing to the same console.
func SyncWriter(w io.Writer) io.Writer {
	return &syncWriter{w: w}
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}
