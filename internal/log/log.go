// Package log provides the process-wide logger, backed by logrus.
package log

import (
	"fmt"
	"io"
	"os"
	"sync"

	"firestige.xyz/mcdetect/internal/config"
)

type Logger interface {
	Print(args ...interface{})
	Printf(format string, args ...interface{})

	Trace(args ...interface{})
	Tracef(format string, args ...interface{})

	Debug(args ...interface{})
	Debugf(format string, args ...interface{})

	Info(args ...interface{})
	Infof(format string, args ...interface{})

	Warn(args ...interface{})
	Warnf(format string, args ...interface{})

	Error(args ...interface{})
	Errorf(format string, args ...interface{})

	Fatal(args ...interface{})
	Fatalf(format string, args ...interface{})

	Panic(args ...interface{})
	Panicf(format string, args ...interface{})

	WithField(field string, value interface{}) Logger
	WithFields(fields Fields) Logger
	WithError(err error) Logger

	IsTraceEnabled() bool
	IsDebugEnabled() bool
	IsInfoEnabled() bool
}

// Fields is a set of structured key/value pairs attached to an entry.
type Fields map[string]interface{}

const (
	defaultPattern    = "%time [%level] %field %msg%n"
	defaultTimeFormat = "2006-01-02 15:04:05.000"
)

var (
	mu     sync.RWMutex
	logger Logger = newLogrusAdapter("info", defaultPattern, defaultTimeFormat, os.Stderr)
	closer io.Closer
)

// GetLogger returns the current global logger. Before Init it logs info and
// above to stderr.
func GetLogger() Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// Init replaces the global logger according to cfg. Logs always go to stderr,
// so stdout stays free for rendered records; a rotated file is added when
// cfg.File is enabled.
func Init(cfg config.LogConfig) error {
	if _, err := parseLevel(cfg.Level); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}

	// Not io.MultiWriter: a full disk under the log file must not stop
	// entries from reaching stderr.
	out := fanout{os.Stderr}
	var fileCloser io.Closer
	if cfg.File.Enabled {
		fw, err := newFileAppender(cfg.File)
		if err != nil {
			return fmt.Errorf("failed to create file output: %w", err)
		}
		out = append(out, fw)
		fileCloser = fw
	}

	pattern := cfg.Pattern
	if pattern == "" {
		pattern = defaultPattern
	}
	timeFormat := cfg.TimeFormat
	if timeFormat == "" {
		timeFormat = defaultTimeFormat
	}

	next := newLogrusAdapter(cfg.Level, pattern, timeFormat, out)

	mu.Lock()
	prev := closer
	logger, closer = next, fileCloser
	mu.Unlock()

	if prev != nil {
		_ = prev.Close()
	}
	return nil
}

// Close releases the file appender, if any. The logger keeps writing to stderr.
func Close() error {
	mu.Lock()
	c := closer
	closer = nil
	mu.Unlock()
	if c != nil {
		return c.Close()
	}
	return nil
}

// fanout writes every entry to each output in turn. A failing output does not
// stop the rest; the last error is returned.
type fanout []io.Writer

func (f fanout) Write(p []byte) (int, error) {
	var err error
	for _, w := range f {
		if _, e := w.Write(p); e != nil {
			err = e
		}
	}
	return len(p), err
}
