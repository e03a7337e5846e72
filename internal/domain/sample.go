package domain

import "time"

// Kind discriminates the two sample shapes produced by importers.
type Kind uint8

const (
	KindScalar Kind = iota + 1
	KindStatistics
)

func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindStatistics:
		return "statistics"
	default:
		return "unknown"
	}
}

// Sample is the canonical unit of imported time-series data.
//
// Scalar samples only carry Value. Statistics samples also carry the
// Min/Max envelope and a Count; StdDev is always zero for imported data.
type Sample struct {
	Kind      Kind      `json:"kind"`
	Timestamp time.Time `json:"ts"`
	Value     float64   `json:"value"`
	StdDev    float64   `json:"stddev,omitempty"`
	Min       float64   `json:"min,omitempty"`
	Max       float64   `json:"max,omitempty"`
	Count     int       `json:"count"`
	Alarm     Alarm     `json:"alarm"`

	Channel  string `json:"channel,omitempty"`
	Source   string `json:"source,omitempty"`
	Line     int    `json:"line,omitempty"`
	ImportID string `json:"import_id,omitempty"`
}

// NewScalar builds a scalar sample with a neutral alarm.
func NewScalar(ts time.Time, value float64) *Sample {
	return &Sample{
		Kind:      KindScalar,
		Timestamp: ts,
		Value:     value,
		Count:     1,
		Alarm:     NoAlarm(),
	}
}

// NewStatistics builds a statistics sample. min and max are offsets from
// value, not absolute bounds: the envelope is [value-min, value+max].
func NewStatistics(ts time.Time, value, min, max float64) *Sample {
	return &Sample{
		Kind:      KindStatistics,
		Timestamp: ts,
		Value:     value,
		Min:       value - min,
		Max:       value + max,
		Count:     1,
		Alarm:     NoAlarm(),
	}
}

func (s *Sample) IsStatistics() bool { return s.Kind == KindStatistics }
