package bridge

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ParseLogLevel converts a level name into a zerolog level; empty means info
func ParseLogLevel(s string) (zerolog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return zerolog.InfoLevel, nil
	case "trace":
		return zerolog.TraceLevel, nil
	case "debug":
		return zerolog.DebugLevel, nil
	case "warn", "warning":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	default:
		return zerolog.InfoLevel, fmt.Errorf("unknown log level %q (valid: trace, debug, info, warn, error)", s)
	}
}

// NewLogger creates the bridge logger writing to w in console or json format
func NewLogger(w io.Writer, level, format string) (zerolog.Logger, error) {
	parsed, err := ParseLogLevel(level)
	if err != nil {
		return zerolog.Nop(), err
	}
	switch format {
	case "", "console":
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}
	case "json":
	default:
		return zerolog.Nop(), fmt.Errorf("unknown log format %q (expected console or json)", format)
	}
	return zerolog.New(w).Level(parsed).With().Timestamp().Logger(), nil
}
