package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/felixgeelhaar/pomgen/internal/cmd"
	"github.com/felixgeelhaar/pomgen/internal/exitcode"
	"github.com/felixgeelhaar/pomgen/internal/ux"
)

func main() {
	// Create a context that listens for interrupt signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.ExecuteContext(ctx); err != nil {
		if ctx.Err() == context.Canceled {
			fmt.Fprintln(os.Stderr, "\nOperation cancelled by user")
			exitcode.Exit(exitcode.Interrupted)
		}

		ux.PrintError(os.Stderr, ux.EnhanceError(err), ux.NewStyles(os.Getenv("NO_COLOR") != ""))
		exitcode.ExitWithError(err)
	}
	exitcode.Exit(exitcode.Success)
}
