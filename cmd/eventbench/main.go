// Command eventbench benchmarks and inspects eventx dispatch.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/Abraxas-365/eventcraft/logx"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		logx.Error("%v", err)
		stop()
		os.Exit(1)
	}
}
