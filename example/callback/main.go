// Run from the repository root: go run ./example/callback
package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/ghalamif/TrendImport/pkg/trendimport"
)

func main() {
	cfg, err := trendimport.LoadConfig("data/config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	callback := func(batch []trendimport.Sample) error {
		for _, sample := range batch {
			fmt.Printf("%s channel=%s %s value=%g file=%s:%d\n",
				sample.Timestamp.Format(time.RFC3339Nano),
				sample.Channel,
				sample.Kind,
				sample.Value,
				sample.Source,
				sample.Line,
			)
		}
		return nil
	}

	rt, err := trendimport.NewRuntime(cfg, trendimport.WithSink(trendimport.NewCallbackSink("stdout", callback)))
	if err != nil {
		log.Fatalf("build runtime: %v", err)
	}

	if err := rt.Run(context.Background()); err != nil {
		log.Fatalf("runtime error: %v", err)
	}
}
