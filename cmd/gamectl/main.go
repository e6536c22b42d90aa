package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/oremus-labs/ol-game-console/internal/gamectl"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := gamectl.Execute(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
