package sink

import (
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/ghalamif/TrendImport/internal/domain"
)

func TestTimescaleSinkWriteBatch(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	sink := NewTimescaleSink(db, "samples")
	ts := time.Date(2020, 1, 2, 10, 0, 0, 0, time.UTC)

	scalar := domain.NewScalar(ts, 42)
	scalar.Channel, scalar.Line, scalar.Source, scalar.ImportID = "sim://sine", 1, "a.csv", "run-1"
	stats := domain.NewStatistics(ts.Add(time.Second), 10, 2, 3)
	stats.Channel, stats.Line, stats.Source, stats.ImportID = "sim://sine", 2, "a.csv", "run-1"

	expectedQuery := regexp.QuoteMeta("INSERT INTO samples (channel, ts, line, kind, value, min, max, count, severity, status, source, import_id) VALUES " +
		"($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)," +
		"($13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24) " +
		"ON CONFLICT (channel, ts, line) DO NOTHING")
	mock.ExpectExec(expectedQuery).
		WithArgs(
			"sim://sine", ts, 1, "scalar", 42.0, sql.NullFloat64{}, sql.NullFloat64{}, 1, "NONE", "NONE", "a.csv", "run-1",
			"sim://sine", ts.Add(time.Second), 2, "statistics", 10.0,
			sql.NullFloat64{Float64: 8, Valid: true}, sql.NullFloat64{Float64: 13, Valid: true},
			1, "NONE", "NONE", "a.csv", "run-1",
		).
		WillReturnResult(sqlmock.NewResult(2, 2))

	if err := sink.WriteBatch([]*domain.Sample{scalar, stats}); err != nil {
		t.Fatalf("write batch: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestTimescaleSinkWriteBatchNoSamples(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	sink := NewTimescaleSink(db, "samples")
	if err := sink.WriteBatch(nil); err != nil {
		t.Fatalf("expected nil error for empty batch, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestTimescaleSinkWrapsExecError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	boom := errors.New("connection reset")
	mock.ExpectExec("INSERT INTO trends").WillReturnError(boom)

	sink := NewTimescaleSink(db, "trends")
	err = sink.WriteBatch([]*domain.Sample{domain.NewScalar(time.Unix(0, 0), 1)})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped exec error, got %v", err)
	}
}

func TestTimescaleSinkName(t *testing.T) {
	db, _, _ := sqlmock.New()
	defer db.Close()

	sink := NewTimescaleSink(db, "samples")
	if sink.Name() != "timescaledb" {
		t.Fatalf("expected sink name timescaledb, got %s", sink.Name())
	}
}
