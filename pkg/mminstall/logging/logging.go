// Package logging provides component loggers for the installer, written to a
// rotating log file inside the install directory.
//
//	if err := logging.Init(logging.Config{Level: "info", Path: logging.InstallLogPath(dir)}); err != nil {
//	    return err
//	}
//	defer logging.Close()
//
//	log := logging.Get("installer")
//	log.Info("phase changed", "phase", "installMods")
package logging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/adrg/xdg"
	"github.com/charmbracelet/log"
)

// Level is a logging severity.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = [...]string{"debug", "info", "warn", "error"}

func (l Level) String() string {
	if l < LevelDebug || l > LevelError {
		return "unknown"
	}
	return levelNames[l]
}

func (l Level) charm() log.Level {
	switch l {
	case LevelDebug:
		return log.DebugLevel
	case LevelWarn:
		return log.WarnLevel
	case LevelError:
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

// ErrInvalidLevel is returned for an unrecognized level name.
var ErrInvalidLevel = errors.New("invalid log level")

// ParseLevel parses a level name. "warning" is accepted as an alias of "warn".
func ParseLevel(s string) (Level, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "warning" {
		name = "warn"
	}
	for i, n := range levelNames {
		if n == name {
			return Level(i), nil
		}
	}
	return LevelInfo, fmt.Errorf("%w: %q", ErrInvalidLevel, s)
}

// Config configures the logging system.
type Config struct {
	// Level is the default level for every component.
	Level string

	// Path is the log file. Empty uses DefaultLogPath.
	Path string

	Rotation RotationConfig

	// Components overrides the level per component name.
	Components map[string]string

	// ConsoleLevel mirrors entries at or above this level to stderr.
	// Empty disables console output.
	ConsoleLevel string

	// TUIMode suppresses console output and keeps recent entries in memory
	// for the progress view.
	TUIMode bool
}

// Entry is a log record delivered to subscribers.
type Entry struct {
	Time      time.Time
	Level     Level
	Component string
	Message   string
}

// Logger is a component logger. The zero configuration (before Init)
// discards everything.
type Logger struct {
	file      *log.Logger
	console   *log.Logger
	component string
}

func (l *Logger) Debug(msg string, kv ...any) { l.emit(LevelDebug, msg, kv) }
func (l *Logger) Info(msg string, kv ...any)  { l.emit(LevelInfo, msg, kv) }
func (l *Logger) Warn(msg string, kv ...any)  { l.emit(LevelWarn, msg, kv) }
func (l *Logger) Error(msg string, kv ...any) { l.emit(LevelError, msg, kv) }

// With returns a logger that attaches kv to every entry.
func (l *Logger) With(kv ...any) *Logger {
	out := &Logger{file: l.file.With(kv...), component: l.component}
	if l.console != nil {
		out.console = l.console.With(kv...)
	}
	return out
}

func (l *Logger) emit(level Level, msg string, kv []any) {
	write(l.file, level, msg, kv)
	if l.console != nil {
		write(l.console, level, msg, kv)
	}
	std.publish(Entry{Time: time.Now(), Level: level, Component: l.component, Message: msg})
}

func write(dst *log.Logger, level Level, msg string, kv []any) {
	switch level {
	case LevelDebug:
		dst.Debug(msg, kv...)
	case LevelInfo:
		dst.Info(msg, kv...)
	case LevelWarn:
		dst.Warn(msg, kv...)
	case LevelError:
		dst.Error(msg, kv...)
	}
}

type registry struct {
	mu          sync.RWMutex
	ready       bool
	writer      *RotatingWriter
	level       Level
	overrides   map[string]Level
	console     bool
	consoleLvl  Level
	loggers     map[string]*Logger
	subscribers map[chan Entry]struct{}
	recent      *Ring
}

var std = &registry{
	loggers:     make(map[string]*Logger),
	overrides:   make(map[string]Level),
	subscribers: make(map[chan Entry]struct{}),
}

// Init configures the logging system. Loggers obtained before Init are
// rebuilt so they write to the new destination.
func Init(cfg Config) error {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return fmt.Errorf("parsing log level: %w", err)
	}
	overrides := make(map[string]Level, len(cfg.Components))
	for comp, name := range cfg.Components {
		lvl, err := ParseLevel(name)
		if err != nil {
			return fmt.Errorf("parsing level for component %s: %w", comp, err)
		}
		overrides[comp] = lvl
	}
	var consoleLvl Level
	console := cfg.ConsoleLevel != "" && !cfg.TUIMode
	if console {
		if consoleLvl, err = ParseLevel(cfg.ConsoleLevel); err != nil {
			return fmt.Errorf("parsing console level: %w", err)
		}
	}

	path := cfg.Path
	if path == "" {
		path = DefaultLogPath()
	}
	writer, err := NewRotatingWriter(path, cfg.Rotation)
	if err != nil {
		return fmt.Errorf("creating log writer: %w", err)
	}

	std.mu.Lock()
	defer std.mu.Unlock()

	if std.writer != nil {
		_ = std.writer.Close() // replaced below
	}
	std.writer = writer
	std.level = level
	std.overrides = overrides
	std.console = console
	std.consoleLvl = consoleLvl
	std.recent = nil
	if cfg.TUIMode {
		std.recent = NewRing(DefaultRingSize)
	}
	std.ready = true

	for comp := range std.loggers {
		std.loggers[comp] = std.build(comp)
	}
	return nil
}

// Get returns the logger for component, creating it on first use.
func Get(component string) *Logger {
	std.mu.RLock()
	l, ok := std.loggers[component]
	std.mu.RUnlock()
	if ok {
		return l
	}

	std.mu.Lock()
	defer std.mu.Unlock()
	if l, ok := std.loggers[component]; ok {
		return l
	}
	l = std.build(component)
	std.loggers[component] = l
	return l
}

// build must be called with mu held.
func (r *registry) build(component string) *Logger {
	level := r.level
	if lvl, ok := r.overrides[component]; ok {
		level = lvl
	}

	if !r.ready {
		return &Logger{
			file:      log.NewWithOptions(io.Discard, log.Options{Level: level.charm(), Prefix: component}),
			component: component,
		}
	}

	l := &Logger{
		file: log.NewWithOptions(r.writer, log.Options{
			Level:           level.charm(),
			ReportTimestamp: true,
			TimeFormat:      time.RFC3339,
			Prefix:          component,
		}),
		component: component,
	}
	if r.console {
		l.console = log.NewWithOptions(os.Stderr, log.Options{
			Level:           r.consoleLvl.charm(),
			ReportTimestamp: true,
			TimeFormat:      time.TimeOnly,
			Prefix:          component,
		})
	}
	return l
}

// Close flushes the log file and detaches all subscribers.
func Close() error {
	std.mu.Lock()
	defer std.mu.Unlock()

	if !std.ready {
		return nil
	}
	for ch := range std.subscribers {
		close(ch)
		delete(std.subscribers, ch)
	}

	var err error
	if std.writer != nil {
		err = std.writer.Close()
		std.writer = nil
	}
	std.ready = false
	std.recent = nil
	std.loggers = make(map[string]*Logger)
	std.overrides = make(map[string]Level)
	if err != nil {
		return fmt.Errorf("closing log writer: %w", err)
	}
	return nil
}

// Subscribe returns a buffered channel receiving every entry logged from now
// on. Entries are dropped while the channel is full.
func Subscribe() <-chan Entry {
	std.mu.Lock()
	defer std.mu.Unlock()
	ch := make(chan Entry, 100)
	std.subscribers[ch] = struct{}{}
	return ch
}

// Unsubscribe stops delivery to ch. The channel is left open for the caller
// to drain.
func Unsubscribe(ch <-chan Entry) {
	std.mu.Lock()
	defer std.mu.Unlock()
	for sub := range std.subscribers {
		if sub == ch {
			delete(std.subscribers, sub)
			return
		}
	}
}

func (r *registry) publish(e Entry) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.recent != nil {
		r.recent.Add(e)
	}
	for ch := range r.subscribers {
		select {
		case ch <- e:
		default:
		}
	}
}

// Recent returns the in-memory entry ring, or nil outside TUI mode.
func Recent() *Ring {
	std.mu.RLock()
	defer std.mu.RUnlock()
	return std.recent
}

// Path returns the active log file path, or "" before Init.
func Path() string {
	std.mu.RLock()
	defer std.mu.RUnlock()
	if std.writer == nil {
		return ""
	}
	return std.writer.path
}

// DefaultLogPath is used when no install directory is known:
// $XDG_STATE_HOME/mminstall/mminstall.log.
func DefaultLogPath() string {
	return filepath.Join(xdg.StateHome, "mminstall", "mminstall.log")
}

// InstallLogPath returns the log file kept inside an install directory.
func InstallLogPath(installDir string) string {
	return filepath.Join(installDir, "mm-installer", "logs", "mminstall.log")
}

// DefaultConfig returns info-level logging to DefaultLogPath.
func DefaultConfig() Config {
	return Config{
		Level:    "info",
		Path:     DefaultLogPath(),
		Rotation: DefaultRotationConfig(),
	}
}
