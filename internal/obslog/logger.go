// Package obslog provides the structured logging interface shared by every
// transcribe-core component, plus a charmbracelet/log backed implementation
// for the CLI and a no-op implementation for library embedding.
package obslog

import (
	"os"

	charmlog "github.com/charmbracelet/log"
)

// Logger is implemented by every component that logs. It mirrors the
// orchestrator.Logger shape so components that took a Logger before still
// slot one in without adaptation.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	With(args ...interface{}) Logger
}

// NoOpLogger discards everything. Used as the default for consumers that
// embed transcribe-core as a library without wiring a logger.
type NoOpLogger struct{}

func (NoOpLogger) Debug(msg string, args ...interface{}) {}
func (NoOpLogger) Info(msg string, args ...interface{})  {}
func (NoOpLogger) Warn(msg string, args ...interface{})  {}
func (NoOpLogger) Error(msg string, args ...interface{}) {}
func (n NoOpLogger) With(args ...interface{}) Logger      { return n }

// charmLogger adapts *charmlog.Logger to the Logger interface.
type charmLogger struct {
	l *charmlog.Logger
}

// New returns a Logger backed by charmbracelet/log, writing to stderr with
// the given minimum level ("debug", "info", "warn", "error").
func New(level string) Logger {
	l := charmlog.NewWithOptions(os.Stderr, charmlog.Options{
		ReportTimestamp: true,
		ReportCaller:    false,
	})
	l.SetLevel(parseLevel(level))
	return &charmLogger{l: l}
}

func parseLevel(level string) charmlog.Level {
	lvl, err := charmlog.ParseLevel(level)
	if err != nil {
		return charmlog.InfoLevel
	}
	return lvl
}

func (c *charmLogger) Debug(msg string, args ...interface{}) { c.l.Debug(msg, args...) }
func (c *charmLogger) Info(msg string, args ...interface{})  { c.l.Info(msg, args...) }
func (c *charmLogger) Warn(msg string, args ...interface{})  { c.l.Warn(msg, args...) }
func (c *charmLogger) Error(msg string, args ...interface{}) { c.l.Error(msg, args...) }

func (c *charmLogger) With(args ...interface{}) Logger {
	return &charmLogger{l: c.l.With(args...)}
}
