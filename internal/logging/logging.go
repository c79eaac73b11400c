// Package logging constructs the prefixed loggers used across areamirror.
package logging

import (
	"io"
	"log"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options controls where log output goes.
type Options struct {
	// File enables a rotating log file in addition to stderr when set.
	File string

	// MaxSizeMB is the size a log file may reach before rotation
	// (default 10).
	MaxSizeMB int

	// MaxBackups is the number of rotated files to retain (default 3).
	MaxBackups int
}

// New returns a prefixed logger writing to stderr, and additionally to a
// rotating file when Options.File is set.
func New(prefix string, opts Options) *log.Logger {
	var w io.Writer = os.Stderr

	if opts.File != "" {
		if opts.MaxSizeMB <= 0 {
			opts.MaxSizeMB = 10
		}
		if opts.MaxBackups <= 0 {
			opts.MaxBackups = 3
		}
		w = io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
		})
	}

	return log.New(w, prefix, log.LstdFlags)
}
