package ports

// Observability carries diagnostics and metrics. Line-level import
// problems are reported through LogInfo; pipeline failures through
// LogError and LogCritical.
type Observability interface {
	LogInfo(msg string, fields ...Field)
	LogError(msg string, err error, fields ...Field)
	LogCritical(msg string, err error, fields ...Field)

	// IncCounter and SetGauge take metric names; unknown names are ignored.
	IncCounter(name string, v float64)
	ObserveLatency(name string, seconds float64)
	SetGauge(name string, v float64)
}

// Field is one structured key/value attached to a log entry.
type Field struct {
	Key   string
	Value any
}
