package textimport

import (
	"errors"
	"io"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ghalamif/TrendImport/internal/domain"
	"github.com/ghalamif/TrendImport/internal/ports"
)

type recordingObs struct {
	nopObs
	infos []string
	lines []string
}

func (r *recordingObs) LogInfo(msg string, fields ...ports.Field) {
	r.infos = append(r.infos, msg)
	for _, f := range fields {
		if f.Key == "line" {
			r.lines = append(r.lines, f.Value.(string))
		}
	}
}

func importString(t *testing.T, opts Options, input string) []*domain.Sample {
	t.Helper()
	samples, err := New(opts).Import(strings.NewReader(input))
	require.NoError(t, err)
	return samples
}

func TestImportScalarLine(t *testing.T) {
	samples := importString(t, Options{}, "2020-01-02 10:00:00.250  3.5\n")

	require.Len(t, samples, 1)
	s := samples[0]
	assert.Equal(t, domain.KindScalar, s.Kind)
	assert.Equal(t, time.Date(2020, 1, 2, 10, 0, 0, 250*int(time.Millisecond), time.UTC), s.Timestamp)
	assert.Equal(t, 3.5, s.Value)
	assert.Equal(t, 1, s.Count)
	assert.Equal(t, domain.NoAlarm(), s.Alarm)
	assert.Equal(t, 1, s.Line)
}

func TestImportStatisticsLine(t *testing.T) {
	samples := importString(t, Options{}, "2020-01-02 10:00:00.000\t10\t2\t3 trailing text\n")

	require.Len(t, samples, 1)
	s := samples[0]
	assert.Equal(t, domain.KindStatistics, s.Kind)
	assert.Equal(t, 10.0, s.Value)
	assert.Equal(t, 8.0, s.Min)
	assert.Equal(t, 13.0, s.Max)
	assert.Equal(t, 1, s.Count)
	assert.Zero(t, s.StdDev)
}

func TestImportStatisticsTakesPriority(t *testing.T) {
	samples := importString(t, Options{}, "2020-01-02 10:00:00.000,1.5,0.5,0.25\n")

	require.Len(t, samples, 1)
	assert.True(t, samples[0].IsStatistics())
	assert.Equal(t, 1.0, samples[0].Min)
	assert.Equal(t, 1.75, samples[0].Max)
}

func TestImportTwoTrailingTokensStayScalar(t *testing.T) {
	samples := importString(t, Options{}, "2020-01-02 10:00:00.000 1.5 2.5\n")

	require.Len(t, samples, 1)
	assert.Equal(t, domain.KindScalar, samples[0].Kind)
	assert.Equal(t, 1.5, samples[0].Value)
}

func TestImportSkipsBlankAndCommentsSilently(t *testing.T) {
	obs := &recordingObs{}
	input := "\n   \n# header\n  # indented comment\n\t\n"

	samples, rep, err := New(Options{Obs: obs}).ImportWithReport(strings.NewReader(input))
	require.NoError(t, err)

	assert.Empty(t, samples)
	assert.Empty(t, obs.infos)
	assert.Equal(t, 5, rep.Skipped)
}

func TestImportIgnoresUnrecognizedLines(t *testing.T) {
	obs := &recordingObs{}
	input := strings.Join([]string{
		"time value",
		"2020-01-02 10:00:00.000 1",
		"not a sample at all",
		"2020-01-02 10:00:01.000 2",
	}, "\n")

	samples, rep, err := New(Options{Obs: obs}).ImportWithReport(strings.NewReader(input))
	require.NoError(t, err)

	require.Len(t, samples, 2)
	assert.Equal(t, 2, rep.Ignored)
	assert.Equal(t, []string{"ignored_input", "ignored_input"}, obs.infos)
	assert.Equal(t, []string{"time value", "not a sample at all"}, obs.lines)
}

func TestImportSkipsBadNumberAndContinues(t *testing.T) {
	input := strings.Join([]string{
		"2020-01-01 00:00:00.000 abc",
		"2020-01-01 00:00:00.000 1.2.3",
		"2020-01-01 00:00:00.000 e",
		"2020-01-01 00:00:01.000 7",
	}, "\n")

	samples, rep, err := New(Options{}).ImportWithReport(strings.NewReader(input))
	require.NoError(t, err)

	require.Len(t, samples, 1)
	assert.Equal(t, 7.0, samples[0].Value)
	assert.Equal(t, 4, samples[0].Line)
	// "abc" matches neither shape; the other two are recognized but invalid.
	assert.Equal(t, 1, rep.Ignored)
	assert.Equal(t, 2, rep.Invalid)
}

func TestImportSkipsInvalidCalendarDate(t *testing.T) {
	input := "2020-02-30 10:00:00.000 1\n2020-01-01 25:00:00.000 1\n2020-01-01 10:00:00.000 2\n"

	samples := importString(t, Options{}, input)

	require.Len(t, samples, 1)
	assert.Equal(t, 2.0, samples[0].Value)
}

func TestImportSlashAndDashDatesMatch(t *testing.T) {
	samples := importString(t, Options{}, "2020/01/02 10:00:00.0 1.0\n2020-01-02 10:00:00.0 1.0\n")

	require.Len(t, samples, 2)
	assert.True(t, samples[0].Timestamp.Equal(samples[1].Timestamp))
	assert.Equal(t, time.Date(2020, 1, 2, 10, 0, 0, 0, time.UTC), samples[0].Timestamp)
}

func TestImportTruncatesToMilliseconds(t *testing.T) {
	samples := importString(t, Options{}, "2020-01-02 10:00:00.123456789 1\n2020-01-02 10:00:00.123999999 1\n")

	require.Len(t, samples, 2)
	want := time.Date(2020, 1, 2, 10, 0, 0, 123*int(time.Millisecond), time.UTC)
	assert.Equal(t, want, samples[0].Timestamp)
	assert.Equal(t, want, samples[1].Timestamp)
}

func TestImportAcceptsEmptyFraction(t *testing.T) {
	samples := importString(t, Options{}, "2020-01-02 10:00:05. 4\n")

	require.Len(t, samples, 1)
	assert.Equal(t, time.Date(2020, 1, 2, 10, 0, 5, 0, time.UTC), samples[0].Timestamp)
}

func TestImportSeparators(t *testing.T) {
	tests := []struct {
		name string
		seps Separators
		line string
	}{
		{"en", Separators{Grouping: ',', Decimal: '.'}, "2020-01-02 10:00:00.000 1,234.5"},
		{"de", Separators{Grouping: '.', Decimal: ','}, "2020-01-02 10:00:00.000 1.234,5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			samples := importString(t, Options{Separators: tt.seps}, tt.line)
			require.Len(t, samples, 1)
			assert.Equal(t, 1234.5, samples[0].Value)
		})
	}
}

func TestImportPreservesOrder(t *testing.T) {
	input := strings.Join([]string{
		"2020-01-02 10:00:03.000 3",
		"# comment",
		"2020-01-02 10:00:01.000 1 0.5 0.5",
		"garbage",
		"2020-01-02 10:00:02.000 2",
		"2020-01-02 10:00:02.000 2",
	}, "\n")

	samples := importString(t, Options{}, input)

	var values []float64
	var lines []int
	for _, s := range samples {
		values = append(values, s.Value)
		lines = append(lines, s.Line)
	}
	assert.Equal(t, []float64{3, 1, 2, 2}, values)
	assert.Equal(t, []int{1, 3, 5, 6}, lines)
}

func TestImportHandlesCRLFAndMissingFinalNewline(t *testing.T) {
	samples := importString(t, Options{}, "2020-01-02 10:00:00.000 1\r\n2020-01-02 10:00:01.000 2")

	require.Len(t, samples, 2)
	assert.Equal(t, 2.0, samples[1].Value)
}

func TestImportLocation(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	samples := importString(t, Options{Location: loc}, "2020-01-02 10:00:00.000 1\n")

	require.Len(t, samples, 1)
	assert.Equal(t, time.Date(2020, 1, 2, 8, 0, 0, 0, time.UTC), samples[0].Timestamp.UTC())
}

func TestImportOverflow(t *testing.T) {
	line := "2020-01-02 10:00:00.000 1e999\n"

	assert.Empty(t, importString(t, Options{}, line))

	samples := importString(t, Options{AllowNonFinite: true}, line)
	require.Len(t, samples, 1)
	assert.True(t, samples[0].Value > 1e308)
}

func TestImportRejectsEnvelopeOverflow(t *testing.T) {
	line := "2024-01-02 03:04:05.000 1e308 -1e308 1e308\n"

	obs := &recordingObs{}
	samples, rep, err := New(Options{Obs: obs}).ImportWithReport(strings.NewReader(line))
	require.NoError(t, err)
	assert.Empty(t, samples)
	assert.Equal(t, 1, rep.Invalid)
	assert.Equal(t, []string{"invalid_number"}, obs.infos)

	samples = importString(t, Options{AllowNonFinite: true}, line)
	require.Len(t, samples, 1)
	assert.True(t, math.IsInf(samples[0].Min, 1))
	assert.True(t, math.IsInf(samples[0].Max, 1))
}

func TestImportStampsChannel(t *testing.T) {
	samples := importString(t, Options{Channel: "sim://ramp"}, "2020-01-02 10:00:00.000 1\n")

	require.Len(t, samples, 1)
	assert.Equal(t, "sim://ramp", samples[0].Channel)
}

type failingReader struct {
	data string
	read bool
}

func (f *failingReader) Read(p []byte) (int, error) {
	if !f.read {
		f.read = true
		return copy(p, f.data), nil
	}
	return 0, io.ErrClosedPipe
}

func TestImportReadErrorDiscardsSamples(t *testing.T) {
	r := &failingReader{data: "2020-01-02 10:00:00.000 1\n2020-01-02 10:00:01.000 2\n"}

	samples, err := New(Options{}).Import(r)

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRead))
	assert.True(t, errors.Is(err, io.ErrClosedPipe))
	assert.Nil(t, samples)
}

func TestImporterType(t *testing.T) {
	assert.Equal(t, "csv", New(Options{}).Type())
}
