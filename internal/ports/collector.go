package ports

import "github.com/ghalamif/TrendImport/internal/domain"

// Collector produces samples into the pipeline until stopped. A collector
// with a finite input closes out when it is exhausted; one that watches for
// new input keeps out open until Stop.
type Collector interface {
	Start(out chan<- *domain.Sample) error
	Stop() error
}
