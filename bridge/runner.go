package bridge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/jessevdk/go-flags"
)

const usageDescription = `Exposes a stdio JSON-RPC (MCP) server over HTTP.

Example:
  mcp-bridge -t 60000 "node build/index.js --stdio"`

// Run parses args, serves the bridge until the subprocess exits or ctx is cancelled,
// and returns the exit code the bridge process should terminate with.
// Logs go to stdout; usage and fatal errors go to stderr.
func Run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	options := &Options{}
	parser := flags.NewParser(options, flags.HelpFlag|flags.PassDoubleDash)
	parser.Name = "mcp-bridge"
	parser.Usage = `[OPTIONS] "<command> [args...]"`
	parser.LongDescription = usageDescription
	rest, err := parser.ParseArgs(args)
	if err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			parser.WriteHelp(stdout)
			return 0
		}
		return usageError(parser, stderr, err)
	}
	if len(rest) > 0 {
		return usageError(parser, stderr, fmt.Errorf("unexpected arguments: %s (quote the whole command as one argument)", strings.Join(rest, " ")))
	}

	config := &Config{}
	if options.ConfigURL != "" {
		if config, err = LoadConfig(ctx, options.ConfigURL); err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
			return 1
		}
	}
	config.Apply(options)
	if strings.TrimSpace(config.Command) == "" {
		return usageError(parser, stderr, errors.New("missing command"))
	}
	config.Init()
	if err := config.Validate(); err != nil {
		return usageError(parser, stderr, err)
	}
	logger, err := NewLogger(stdout, config.LogLevel, config.LogFormat)
	if err != nil {
		return usageError(parser, stderr, err)
	}
	logger.Debug().Str("config", config.YAML()).Msg("effective configuration")

	service, err := New(config, WithLogger(logger), WithStderr(stderr))
	if err != nil {
		fmt.Fprintf(stderr, "%s\n", err)
		return 1
	}
	code, err := service.Run(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("bridge failed")
		fmt.Fprintf(stderr, "%s\n", err)
	}
	return code
}

func usageError(parser *flags.Parser, stderr io.Writer, err error) int {
	fmt.Fprintf(stderr, "error: %s\n\n", err)
	parser.WriteHelp(stderr)
	return 1
}
