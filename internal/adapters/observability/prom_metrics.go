package observability

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ghalamif/TrendImport/internal/ports"
)

// Metric names shared by the importer, pipelines and CLI.
const (
	LinesTotal      = "trend_import_lines_total"
	LinesIgnored    = "trend_import_lines_ignored_total"
	LinesInvalid    = "trend_import_lines_invalid_total"
	SamplesImported = "trend_import_samples_total"
	FilesImported   = "trend_import_files_total"
	FilesFailed     = "trend_import_files_failed_total"
	SamplesIngested = "trend_samples_ingested_total"
	QueueDropped    = "trend_queue_dropped_total"
	WALDropped      = "trend_wal_dropped_total"
	WALSizeBytes    = "trend_wal_size_bytes"
	QueueLength     = "trend_queue_length"
	SinkLatency     = "trend_sink_latency_seconds"
)

type PromObs struct {
	logger   *slog.Logger
	counters map[string]prometheus.Counter
	gauges   map[string]prometheus.Gauge
	histos   map[string]prometheus.Observer
}

// NewPromObs registers the runtime metrics with reg (the default registerer
// when nil) and logs through logger (slog.Default when nil).
func NewPromObs(reg prometheus.Registerer, logger *slog.Logger) *PromObs {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if logger == nil {
		logger = slog.Default()
	}

	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{Name: name, Help: help})
	}
	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{Name: name, Help: help})
	}

	counters := map[string]prometheus.Counter{
		LinesTotal:      counter(LinesTotal, "Lines read from imported files."),
		LinesIgnored:    counter(LinesIgnored, "Lines matching neither sample shape."),
		LinesInvalid:    counter(LinesInvalid, "Recognized lines with an unparseable timestamp or number."),
		SamplesImported: counter(SamplesImported, "Samples produced by the text importer."),
		FilesImported:   counter(FilesImported, "Files imported completely."),
		FilesFailed:     counter(FilesFailed, "Files aborted by a read error."),
		SamplesIngested: counter(SamplesIngested, "Total samples successfully written to sink."),
		QueueDropped:    counter(QueueDropped, "Samples lost due to queue backpressure policies."),
		WALDropped:      counter(WALDropped, "Samples refused because the WAL was full."),
	}
	gauges := map[string]prometheus.Gauge{
		WALSizeBytes: gauge(WALSizeBytes, "Size of WAL on disk."),
		QueueLength:  gauge(QueueLength, "Current number of samples buffered in the in-memory queue."),
	}
	latency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    SinkLatency,
		Help:    "Latency of one sink batch write.",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
	})

	for _, c := range counters {
		reg.MustRegister(c)
	}
	for _, g := range gauges {
		reg.MustRegister(g)
	}
	reg.MustRegister(latency)

	return &PromObs{
		logger:   logger,
		counters: counters,
		gauges:   gauges,
		histos: map[string]prometheus.Observer{
			SinkLatency: latency,
		},
	}
}

func (p *PromObs) LogInfo(msg string, fields ...ports.Field) {
	p.logger.Info(msg, attrs(fields)...)
}

func (p *PromObs) LogError(msg string, err error, fields ...ports.Field) {
	p.logger.Error(msg, append(attrs(fields), slog.Any("error", err))...)
}

func (p *PromObs) LogCritical(msg string, err error, fields ...ports.Field) {
	p.logger.Error(msg, append(attrs(fields), slog.Any("error", err), slog.Bool("critical", true))...)
}

func (p *PromObs) IncCounter(name string, v float64) {
	if c, ok := p.counters[name]; ok {
		c.Add(v)
	}
}

func (p *PromObs) ObserveLatency(name string, seconds float64) {
	if h, ok := p.histos[name]; ok {
		h.Observe(seconds)
	}
}

func (p *PromObs) SetGauge(name string, v float64) {
	if g, ok := p.gauges[name]; ok {
		g.Set(v)
	}
}

func attrs(fields []ports.Field) []any {
	out := make([]any, 0, len(fields))
	for _, f := range fields {
		out = append(out, slog.Any(f.Key, f.Value))
	}
	return out
}

var _ ports.Observability = (*PromObs)(nil)
