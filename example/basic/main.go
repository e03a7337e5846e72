// Run from the repository root: go run ./example/basic
package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"

	"github.com/ghalamif/TrendImport"
)

func main() {
	cfg, err := trendimport.LoadConfig("data/config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	rt, err := trendimport.NewRuntime(cfg)
	if err != nil {
		log.Fatalf("build runtime: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rt.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("runtime exited: %v", err)
	}
}
