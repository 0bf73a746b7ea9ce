package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCommand().ExecuteContext(ctx)
	stop()
	if err == nil {
		return
	}
	// An interrupted crawl or reconcile has already logged its partial state.
	if !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, "galleryvault:", err)
	}
	os.Exit(1)
}
