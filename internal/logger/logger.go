// Package logger builds the zerolog logger shared by the binaries.
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/bcnelson/workspace-tree/internal/config"
	"github.com/rs/zerolog"
)

const permission = 0664

// Log is a configured logger and the file it writes to, if any.
type Log struct {
	zerolog.Logger
	file *os.File
}

// New builds a logger writing to w, or to cfg.File when set. Console format
// is meant for terminals; json for everything else.
func New(cfg config.LogConfig, w io.Writer) (*Log, error) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		return nil, err
	}

	l := &Log{}
	if cfg.File != "" {
		l.file, err = os.OpenFile(cfg.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, permission)
		if err != nil {
			return nil, err
		}
		w = zerolog.SyncWriter(l.file)
	}
	if cfg.Format == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339, NoColor: l.file != nil}
	}

	l.Logger = zerolog.New(w).Level(level).With().Timestamp().Logger()
	return l, nil
}

// Close releases the log file.
func (l *Log) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}
