package trendimport

import (
	"github.com/ghalamif/TrendImport/internal/domain"
	"github.com/ghalamif/TrendImport/internal/ports"
)

// Sample is one imported data point: scalar, or statistics with a
// [Min, Max] envelope.
type Sample = domain.Sample

// Kind discriminates scalar and statistics samples.
type Kind = domain.Kind

const (
	KindScalar     = domain.KindScalar
	KindStatistics = domain.KindStatistics
)

// Alarm is the severity/status attached to a sample.
type Alarm = domain.Alarm

// QueuedSample represents an item buffered inside the bounded queue.
type QueuedSample = ports.QueuedSample

// Collector streams samples from any data source into the pipeline.
type Collector = ports.Collector

// SampleQueue is the bounded, in-memory queue that decouples the collector and sink.
type SampleQueue = ports.SampleQueue

// Sink consumes batches of samples and persists them to any downstream system.
type Sink = ports.Sink

// ContextSink is a Sink whose batch writes stop when the pipeline is cancelled.
type ContextSink = ports.ContextSink

// Observability emits metrics and logs about imports and throughput.
type Observability = ports.Observability

// Field is a structured log/metric field used by Observability implementations.
type Field = ports.Field

// WAL abstracts the write-ahead log used for durability and crash recovery.
type WAL = ports.WAL

// WALStats exposes WAL metadata for observability.
type WALStats = ports.WALStats

// WALEntryID uniquely identifies a WAL entry.
type WALEntryID = ports.WALEntryID
