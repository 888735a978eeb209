package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"misophonia/internal/pipeline"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := newRootCommand()
	if err := cmd.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, context.Canceled) {
			printError(os.Stderr, err)
		}
		stop()
		os.Exit(1)
	}
}

// printError writes "kind: message" followed by the remediation hint, if any.
func printError(w io.Writer, err error) {
	kind := pipeline.Kind(err)
	if kind == pipeline.KindUnknown {
		fmt.Fprintln(w, err)
	} else {
		fmt.Fprintf(w, "%s: %v\n", kind, err)
	}
	if hint := pipeline.Hint(err); hint != "" {
		fmt.Fprintf(w, "hint: %s\n", hint)
	}
}
