// Package logger builds the zerolog loggers shared by the gateway and the command line tools.
package logger

import (
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/pkgerrors"
)

const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

type options struct {
	out       io.Writer
	format    string
	component string
}

type Option func(*options)

// WithFormat selects console (human readable) or json output. Unknown formats fall back to console.
func WithFormat(format string) Option {
	return func(o *options) { o.format = strings.ToLower(format) }
}

// WithComponent tags every entry with the binary that wrote it.
func WithComponent(name string) Option {
	return func(o *options) { o.component = name }
}

func WithOutput(w io.Writer) Option {
	return func(o *options) { o.out = w }
}

func New(level string, opts ...Option) zerolog.Logger {
	o := options{out: os.Stderr, format: FormatConsole}
	for _, opt := range opts {
		opt(&o)
	}

	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
	zerolog.TimeFieldFormat = time.RFC3339Nano

	logLevel, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		logLevel = zerolog.InfoLevel
		fmt.Fprintf(o.out, "Invalid log level '%s', defaulting to 'info'\n", level)
	}

	w := o.out
	if o.format != FormatJSON {
		w = zerolog.ConsoleWriter{Out: o.out, TimeFormat: time.RFC3339}
	}

	goVersion, revision := buildInfo()
	ctx := zerolog.New(w).
		Level(logLevel).
		With().
		Timestamp().
		Caller().
		Int("pid", os.Getpid()).
		Str("go_version", goVersion).
		Str("git_revision", revision)
	if o.component != "" {
		ctx = ctx.Str("component", o.component)
	}
	l := ctx.Logger()

	zerolog.DefaultContextLogger = &l
	return l
}

// buildInfo reports the toolchain and VCS revision baked into the binary.
func buildInfo() (goVersion, revision string) {
	goVersion, revision = "unknown", "unknown"
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	goVersion = info.GoVersion
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" {
			revision = s.Value
			break
		}
	}
	return
}
