package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/florianilch/whoop-auth/cmd/whoopauth/commands"
)

// version can be set during build with -ldflags
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := commands.Execute(ctx, os.Args, version)
	if err == nil {
		return
	}

	// cli.Exit errors carry their own exit code and message
	var exitErr cli.ExitCoder
	if errors.As(err, &exitErr) {
		stop()
		cli.HandleExitCoder(err)
		return
	}

	_, _ = fmt.Fprintf(os.Stderr, "error: %v\n", err)
	stop()
	os.Exit(1)
}
