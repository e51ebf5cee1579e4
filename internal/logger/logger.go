package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"codeberg.org/mutker/ipmifanctl/internal/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"
)

type LogLevel int8

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
	FatalLevel
)

var std Logger = New(os.Stdout, false)

type LogEvent struct {
	*zerolog.Event
}

func (e *LogEvent) Msg(msg string) {
	e.Event.Msg(msg)
}

func (e *LogEvent) Send() {
	e.Event.Send()
}

type zlog struct {
	log zerolog.Logger
}

// New returns a console logger writing to out. Timestamps are dropped when
// running under a service manager, which stamps lines itself.
func New(out io.Writer, isService bool) Logger {
	output := zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: time.RFC3339,
		NoColor:    isService,
	}

	if isService {
		output.TimeFormat = ""
		output.FormatTimestamp = func(_ interface{}) string {
			return ""
		}
	}

	return &zlog{log: zerolog.New(output).With().Timestamp().Logger()}
}

// Nop returns a logger that discards everything.
func Nop() Logger {
	return &zlog{log: zerolog.Nop()}
}

// Init replaces the package logger and sets the global level.
func Init(level string, isService bool) error {
	lvl, err := ParseLevel(level)
	if err != nil {
		return err
	}

	std = New(os.Stdout, isService)
	SetLogLevel(lvl)

	return nil
}

// ParseLevel maps a configured level name to a LogLevel.
func ParseLevel(level string) (LogLevel, error) {
	switch strings.ToLower(level) {
	case "debug":
		return DebugLevel, nil
	case "info", "":
		return InfoLevel, nil
	case "warn", "warning":
		return WarnLevel, nil
	case "error":
		return ErrorLevel, nil
	default:
		return InfoLevel, errors.New().WithData(errors.ErrInvalidLogLevel, level)
	}
}

// SetLogLevel sets the global log level
func SetLogLevel(level LogLevel) {
	zerolog.SetGlobalLevel(zerolog.Level(level))
}

// Default returns the package logger.
func Default() Logger {
	return std
}

// IsService checks if the application is running as a service
func IsService() bool {
	if _, err := os.Stdin.Stat(); err != nil {
		return true
	}
	if os.Getenv("SERVICE_NAME") != "" || os.Getenv("INVOCATION_ID") != "" {
		return true
	}
	if os.Getppid() == 1 {
		return true
	}

	return unix.Getpgrp() == unix.Getpid()
}

func (l *zlog) Debug() *LogEvent {
	return &LogEvent{l.log.Debug()}
}

func (l *zlog) Info() *LogEvent {
	return &LogEvent{l.log.Info()}
}

func (l *zlog) Warn() *LogEvent {
	return &LogEvent{l.log.Warn()}
}

func (l *zlog) Error() *LogEvent {
	return &LogEvent{l.log.Error()}
}

func (l *zlog) ErrorWithCode(err errors.Error) *LogEvent {
	return &LogEvent{withCode(l.log.Error(), err)}
}

func (l *zlog) WarnWithCode(err errors.Error) *LogEvent {
	return &LogEvent{withCode(l.log.Warn(), err)}
}

func (l *zlog) With(component string) Logger {
	return &zlog{log: l.log.With().Str("component", component).Logger()}
}

func withCode(e *zerolog.Event, err errors.Error) *zerolog.Event {
	return e.
		Str("error_code", string(err.Code())).
		Str("error_message", err.Error()).
		AnErr("error", err.Unwrap())
}

// Debug logs a debug message
func Debug() *LogEvent {
	return std.Debug()
}

// Info logs an info message
func Info() *LogEvent {
	return std.Info()
}

// Warn logs a warning message
func Warn() *LogEvent {
	return std.Warn()
}

// Error logs an error message
func Error() *LogEvent {
	return std.Error()
}

// ErrorWithCode logs an error message with a specific error code
func ErrorWithCode(err errors.Error) *LogEvent {
	return std.ErrorWithCode(err)
}
