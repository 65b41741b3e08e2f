// Package logging provides structured logging for the Bouncer server.
package logging

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Logger wraps zerolog for server-side structured logging. The dispatcher
// writes one line per resource GET operation at debug level and one line per
// resource delete at info level; resource creation and primitive timers are
// not logged.
type Logger struct {
	zlog zerolog.Logger
}

// New creates a logger writing console-formatted lines to stderr.
func New() *Logger {
	output := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: "15:04:05",
	}
	return &Logger{zlog: zerolog.New(output).With().Timestamp().Logger()}
}

func (l *Logger) Info() *zerolog.Event  { return l.zlog.Info() }
func (l *Logger) Error() *zerolog.Event { return l.zlog.Error() }
func (l *Logger) Debug() *zerolog.Event { return l.zlog.Debug() }
func (l *Logger) Warn() *zerolog.Event  { return l.zlog.Warn() }

// With starts a child-logger builder, used to carry kind/name/op through a
// single request's lifetime.
func (l *Logger) With() zerolog.Context { return l.zlog.With() }

// ParseLevel maps a BOUNCER_LOGLEVEL value to a zerolog.Level.
func ParseLevel(s string) (zerolog.Level, error) {
	return zerolog.ParseLevel(s)
}

// SetGlobalLevel sets the process-wide minimum log level.
func SetGlobalLevel(level zerolog.Level) {
	zerolog.SetGlobalLevel(level)
}

func init() {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: "15:04:05",
	})
}
