// Package logging builds the application's slog loggers. Every component
// logger carries a (subsystem, service, role) triple.
package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Subsystem is the top-level area a log record comes from.
type Subsystem string

const (
	SubsystemDatabase   Subsystem = "database"
	SubsystemDownloader Subsystem = "downloader"
	SubsystemExplorer   Subsystem = "explorer"
	SubsystemMain       Subsystem = "main"
	SubsystemViewer     Subsystem = "viewer"
)

// Role is the part of a subsystem emitting the record.
type Role string

const (
	RoleBase       Role = "base"
	RoleDownloader Role = "downloader"
	RoleExtractor  Role = "extractor"
	RoleNetwork    Role = "network"
	RoleNone       Role = "none"
)

// ServiceNone tags records that are not tied to a site.
const ServiceNone = "none"

// For returns base tagged with the triple.
func For(base *slog.Logger, sub Subsystem, service string, role Role) *slog.Logger {
	if service == "" {
		service = ServiceNone
	}
	return base.With("subsystem", string(sub), "service", service, "role", string(role))
}

// Config controls the sinks.
type Config struct {
	Level      string
	File       string // rotated log file, empty disables it
	MaxSizeMB  int
	MaxBackups int
}

// ParseLevel maps a config level name to a slog.Level.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New builds a text logger writing to stdout and, when cfg.File is set, to
// a size-rotated file. alerts may be nil. The returned closer releases
// the file.
func New(cfg Config, stdout io.Writer, alerts *Alerts) (*slog.Logger, io.Closer) {
	if stdout == nil {
		stdout = os.Stdout
	}
	var out io.Writer = stdout
	var closer io.Closer = nopCloser{}

	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0755); err == nil {
			maxSize := cfg.MaxSizeMB
			if maxSize <= 0 {
				maxSize = 1
			}
			maxBackups := cfg.MaxBackups
			if maxBackups <= 0 {
				maxBackups = 2
			}
			rotator := &lumberjack.Logger{
				Filename:   cfg.File,
				MaxSize:    maxSize,
				MaxBackups: maxBackups,
			}
			out = io.MultiWriter(stdout, rotator)
			closer = rotator
		}
	}

	var h slog.Handler = slog.NewTextHandler(out, &slog.HandlerOptions{Level: ParseLevel(cfg.Level)})
	if alerts != nil {
		h = NewAlertHandler(h, alerts)
	}
	return slog.New(h), closer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
