package sink

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/ghalamif/TrendImport/internal/domain"
	"github.com/ghalamif/TrendImport/internal/ports"
)

var sampleColumns = []string{
	"channel", "ts", "line", "kind", "value", "min", "max", "count",
	"severity", "status", "source", "import_id",
}

// TimescaleSink writes samples into a (hyper)table keyed by channel, ts and
// source line, so replaying a WAL never duplicates rows.
type TimescaleSink struct {
	db        *sql.DB
	tableName string
}

func NewTimescaleSink(db *sql.DB, table string) *TimescaleSink {
	return &TimescaleSink{db: db, tableName: table}
}

func (t *TimescaleSink) Name() string { return "timescaledb" }

func (t *TimescaleSink) WriteBatch(samples []*domain.Sample) error {
	return t.WriteBatchContext(context.Background(), samples)
}

func (t *TimescaleSink) WriteBatchContext(ctx context.Context, samples []*domain.Sample) error {
	if len(samples) == 0 {
		return nil
	}

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(t.tableName)
	b.WriteString(" (")
	b.WriteString(strings.Join(sampleColumns, ", "))
	b.WriteString(") VALUES ")

	args := make([]any, 0, len(samples)*len(sampleColumns))
	for i, s := range samples {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString("(")
		for c := range sampleColumns {
			if c > 0 {
				b.WriteString(",")
			}
			fmt.Fprintf(&b, "$%d", len(args)+c+1)
		}
		b.WriteString(")")

		args = append(args,
			s.Channel,
			s.Timestamp,
			s.Line,
			s.Kind.String(),
			s.Value,
			nullableBound(s, s.Min),
			nullableBound(s, s.Max),
			s.Count,
			s.Alarm.Severity.String(),
			s.Alarm.Status,
			s.Source,
			s.ImportID,
		)
	}

	b.WriteString(" ON CONFLICT (channel, ts, line) DO NOTHING")

	if _, err := t.db.ExecContext(ctx, b.String(), args...); err != nil {
		return fmt.Errorf("insert %d samples into %s: %w", len(samples), t.tableName, err)
	}
	return nil
}

// Scalar samples have no envelope; store NULL rather than a fake zero bound.
func nullableBound(s *domain.Sample, v float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: v, Valid: s.IsStatistics()}
}

var _ ports.ContextSink = (*TimescaleSink)(nil)
