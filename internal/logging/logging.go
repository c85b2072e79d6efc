// Package logging builds the go-kit loggers used across the engine.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
)

// Supported output formats.
const (
	FormatLogfmt = "logfmt"
	FormatJSON   = "json"
)

// New returns a leveled logger writing to stderr.
func New(format, lvl string) (log.Logger, error) {
	return NewWithWriter(os.Stderr, format, lvl)
}

// NewWithWriter returns a leveled logger writing to w.
func NewWithWriter(w io.Writer, format, lvl string) (log.Logger, error) {
	var logger log.Logger
	switch strings.ToLower(format) {
	case "", FormatLogfmt:
		logger = log.NewLogfmtLogger(log.NewSyncWriter(w))
	case FormatJSON:
		logger = log.NewJSONLogger(log.NewSyncWriter(w))
	default:
		return nil, errors.Errorf("unknown log format %q", format)
	}

	opt, err := levelOption(lvl)
	if err != nil {
		return nil, err
	}

	logger = level.NewFilter(logger, opt)
	return log.With(logger, "ts", log.DefaultTimestampUTC, "caller", log.Caller(5)), nil
}

func levelOption(lvl string) (level.Option, error) {
	switch strings.ToLower(lvl) {
	case "debug":
		return level.AllowDebug(), nil
	case "", "info":
		return level.AllowInfo(), nil
	case "warn", "warning":
		return level.AllowWarn(), nil
	case "error":
		return level.AllowError(), nil
	}
	return nil, errors.Errorf("unrecognized log level %q", lvl)
}
