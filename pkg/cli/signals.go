package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// shutdownSignals trigger a graceful stop of the server loop.
var shutdownSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}

// SetupSignalHandler returns a context cancelled on the first SIGINT or
// SIGTERM. Once cancelled, signal delivery reverts to the default
// handler, so a second signal terminates the process instead of waiting
// on a stuck shutdown.
func SetupSignalHandler() context.Context {
	ctx, stop := signal.NotifyContext(context.Background(), shutdownSignals...)
	go func() {
		<-ctx.Done()
		stop()
	}()
	return ctx
}
