package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/viant/mcp-bridge/example/mock"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	fmt.Fprintln(os.Stderr, "mock MCP server ready on stdio")
	err := mock.Serve(ctx, os.Stdin, os.Stdout)
	var exitErr *mock.ExitError
	switch {
	case errors.As(err, &exitErr):
		stop()
		os.Exit(exitErr.Code)
	case err != nil:
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
