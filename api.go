package trendimport

import (
	"io"

	"golang.org/x/text/language"

	base "github.com/ghalamif/TrendImport/pkg/trendimport"
)

// Re-exported errors for convenience.
var (
	ErrRead              = base.ErrRead
	ErrQueueFull         = base.ErrQueueFull
	ErrWALFull           = base.ErrWALFull
	ErrChannelSinkClosed = base.ErrChannelSinkClosed
)

// DefaultSeparators reads numbers like 1,234.5.
var DefaultSeparators = base.DefaultSeparators

// Type aliases so consumers can import github.com/ghalamif/TrendImport directly.
type (
	Config          = base.Config
	Policy          = base.Policy
	ImportConfig    = base.ImportConfig
	TimescaleConfig = base.TimescaleConfig
	MetricsConfig   = base.MetricsConfig
	WALConfig       = base.WALConfig
	LogConfig       = base.LogConfig
	Importer        = base.Importer
	Options         = base.Options
	Separators      = base.Separators
	Report          = base.Report
	Sample          = base.Sample
	Kind            = base.Kind
	Alarm           = base.Alarm
	Runtime         = base.Runtime
	RuntimeOption   = base.RuntimeOption
	Publisher       = base.Publisher
	PublisherConfig = base.PublisherConfig
	SampleBatchSink = base.SampleBatchSink
	Collector       = base.Collector
	Sink            = base.Sink
	ContextSink     = base.ContextSink
	SampleQueue     = base.SampleQueue
	WAL             = base.WAL
	Observability   = base.Observability
	Field           = base.Field
	QueuedSample    = base.QueuedSample
	WALEntryID      = base.WALEntryID
	WALStats        = base.WALStats
)

const (
	KindScalar     = base.KindScalar
	KindStatistics = base.KindStatistics
)

// Config helpers.
func LoadConfig(path string) (*Config, error) {
	return base.LoadConfig(path)
}

// Importer helpers.
func NewImporter(opts Options) *Importer {
	return base.NewImporter(opts)
}

func Import(r io.Reader, opts Options) ([]*Sample, error) {
	return base.Import(r, opts)
}

func SeparatorsFor(tag language.Tag) Separators {
	return base.SeparatorsFor(tag)
}

func SystemSeparators() Separators {
	return base.SystemSeparators()
}

// Runtime and options.
func NewRuntime(cfg *Config, opts ...RuntimeOption) (*Runtime, error) {
	return base.NewRuntime(cfg, opts...)
}

func WithCollector(col Collector) RuntimeOption {
	return base.WithCollector(col)
}

func WithSink(s Sink) RuntimeOption {
	return base.WithSink(s)
}

func WithWAL(w WAL) RuntimeOption {
	return base.WithWAL(w)
}

func WithSampleQueue(q SampleQueue) RuntimeOption {
	return base.WithSampleQueue(q)
}

func WithObservability(obs Observability) RuntimeOption {
	return base.WithObservability(obs)
}

// Sink adapters.
func NewCallbackSink(name string, fn SampleBatchSink) Sink {
	return base.NewCallbackSink(name, fn)
}

func NewChannelSink(name string, buffer int) (Sink, <-chan []Sample, func()) {
	return base.NewChannelSink(name, buffer)
}

// Publisher.
func NewPublisher(cfg *PublisherConfig, sink SampleBatchSink) (*Publisher, error) {
	return base.NewPublisher(cfg, sink)
}
