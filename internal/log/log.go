package log

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	charm "github.com/charmbracelet/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// Config controls where log lines go. An empty Dir keeps output on stderr only.
type Config struct {
	Level  Level
	Dir    string
	Prefix string
}

var (
	mu     sync.RWMutex
	logger = newLogger(os.Stderr, LevelInfo, "calplan")
	closer io.Closer
)

func newLogger(w io.Writer, level Level, prefix string) *charm.Logger {
	return charm.NewWithOptions(w, charm.Options{
		ReportTimestamp: true,
		ReportCaller:    level == LevelDebug,
		CallerOffset:    1,
		Level:           toCharm(level),
		Prefix:          prefix,
	})
}

// Init replaces the package logger. When cfg.Dir is set, lines are written to
// a rotating calplan.log in that directory as well as stderr.
func Init(cfg Config) error {
	level := ParseLevel(string(cfg.Level))
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "calplan"
	}

	var (
		w io.Writer = os.Stderr
		c io.Closer
	)
	if cfg.Dir != "" {
		if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
			return err
		}
		file := &lumberjack.Logger{
			Filename:   filepath.Join(cfg.Dir, "calplan.log"),
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		}
		w = io.MultiWriter(os.Stderr, file)
		c = file
	}

	mu.Lock()
	defer mu.Unlock()
	if closer != nil {
		_ = closer.Close()
	}
	logger = newLogger(w, level, prefix)
	closer = c
	return nil
}

// SetOutput redirects the package logger, keeping the current level. Tests use it
// to capture lines.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	level := fromCharm(logger.GetLevel())
	logger = newLogger(w, level, logger.GetPrefix())
}

// Close flushes and closes the rotating file, if any.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if closer == nil {
		return nil
	}
	err := closer.Close()
	closer = nil
	return err
}

func SetLevel(l Level) {
	mu.RLock()
	defer mu.RUnlock()
	logger.SetLevel(toCharm(l))
	logger.SetReportCaller(l == LevelDebug)
}

// ParseLevel maps a config string onto a Level. Unknown values mean INFO.
func ParseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return LevelDebug
	case "WARN", "WARNING":
		return LevelWarn
	case "ERROR":
		return LevelError
	default:
		return LevelInfo
	}
}

func Debug(msg string, kv ...any) {
	current().Debug(msg, kv...)
}

func Info(msg string, kv ...any) {
	current().Info(msg, kv...)
}

func Warn(msg string, kv ...any) {
	current().Warn(msg, kv...)
}

func Error(msg string, err error, kv ...any) {
	// Prepend error into key-value list.
	extended := append([]any{"err", err}, kv...)
	current().Error(msg, extended...)
}

func current() *charm.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

func toCharm(l Level) charm.Level {
	switch l {
	case LevelDebug:
		return charm.DebugLevel
	case LevelWarn:
		return charm.WarnLevel
	case LevelError:
		return charm.ErrorLevel
	default:
		return charm.InfoLevel
	}
}

func fromCharm(l charm.Level) Level {
	switch l {
	case charm.DebugLevel:
		return LevelDebug
	case charm.WarnLevel:
		return LevelWarn
	case charm.ErrorLevel:
		return LevelError
	default:
		return LevelInfo
	}
}
