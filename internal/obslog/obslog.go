// Package obslog sets up process loggers with optional file rotation.
//
// It follows the same wiring as ausocean-av's cmd/rv: a lumberjack.Logger
// is used as (one of) the io.Writers behind a stdlib log.Logger, so a
// long-running acquisition process doesn't grow an unbounded log file.
package obslog

import (
	"io"
	"log"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// RotationConfig controls on-disk log rotation. A zero value disables
// rotation and logs are written to stderr only.
type RotationConfig struct {
	// Filename is the log file path. Empty disables rotation.
	Filename string

	// MaxSizeMB is the size in megabytes a log file is allowed to reach
	// before it gets rotated.
	MaxSizeMB int

	// MaxBackups is the number of old log files to retain.
	MaxBackups int

	// MaxAgeDays is the number of days to retain old log files.
	MaxAgeDays int
}

// New builds a *log.Logger prefixed with component, writing to stderr and,
// when cfg.Filename is non-empty, to a rotated file.
func New(component string, cfg RotationConfig) *log.Logger {
	var w io.Writer = os.Stderr
	if cfg.Filename != "" {
		fileLog := &lumberjack.Logger{
			Filename:   cfg.Filename,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
		}
		w = io.MultiWriter(os.Stderr, fileLog)
	}
	return log.New(w, "["+component+"] ", log.LstdFlags|log.Lmicroseconds)
}

// Default returns a logger for component writing to stderr only, used
// whenever a component is constructed without an explicit logger.
func Default(component string) *log.Logger {
	return New(component, RotationConfig{})
}
