// Run from the repository root: go run ./example/channel
package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/ghalamif/TrendImport"
)

func main() {
	cfg, err := trendimport.LoadConfig("data/config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	sink, batches, closeBatches := trendimport.NewChannelSink("fanout", 32)

	done := make(chan struct{})
	go func() {
		defer close(done)
		fanoutWorker("ingest", batches)
	}()

	rt, err := trendimport.NewRuntime(cfg, trendimport.WithSink(sink))
	if err != nil {
		log.Fatalf("build runtime: %v", err)
	}

	runErr := rt.Run(context.Background())
	closeBatches()
	<-done
	if runErr != nil {
		log.Fatalf("runtime error: %v", runErr)
	}
}

func fanoutWorker(name string, batches <-chan []trendimport.Sample) {
	for batch := range batches {
		var statistics int
		for _, s := range batch {
			if s.IsStatistics() {
				statistics++
			}
		}
		fmt.Printf("[%s] %d samples (%d statistics) at %s\n", name, len(batch), statistics, time.Now().Format(time.RFC3339))
	}
}
