// Command topicsink subscribes to broker topics listed in a configuration
// file and appends every received payload to a per-subscription log file.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	// Import plugins to trigger self-registration via init()
	_ "github.com/miladsoleymani/topicsink/plugins/kafka"
	_ "github.com/miladsoleymani/topicsink/plugins/mqtt"
	_ "github.com/miladsoleymani/topicsink/plugins/nats"
	_ "github.com/miladsoleymani/topicsink/plugins/rabbitmq"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
