package textimport

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/ghalamif/TrendImport/internal/domain"
	"github.com/ghalamif/TrendImport/internal/ports"
)

// ErrRead wraps failures of the underlying stream. They abort the import.
var ErrRead = errors.New("textimport: read input")

// Options configures an Importer. The zero value reads en-formatted numbers
// and UTC timestamps and discards diagnostics.
type Options struct {
	Separators     Separators
	Location       *time.Location
	AllowNonFinite bool
	// Channel, if set, is stamped on every sample.
	Channel string
	Obs     ports.Observability
}

// Report summarizes one import.
type Report struct {
	Lines   int // lines read, including blank ones
	Samples int
	Skipped int // blank and comment lines
	Ignored int // lines matching neither shape
	Invalid int // recognized lines with a bad timestamp or number
}

// Importer reads "timestamp value" and "timestamp value min max" lines.
//
// Separators and location are fixed at construction so a single import
// never mixes number conventions.
type Importer struct {
	seps           Separators
	loc            *time.Location
	allowNonFinite bool
	channel        string
	obs            ports.Observability
}

func New(opts Options) *Importer {
	imp := &Importer{
		seps:           opts.Separators,
		loc:            opts.Location,
		allowNonFinite: opts.AllowNonFinite,
		channel:        opts.Channel,
		obs:            opts.Obs,
	}
	if imp.seps == (Separators{}) {
		imp.seps = DefaultSeparators
	}
	if imp.loc == nil {
		imp.loc = time.UTC
	}
	if imp.obs == nil {
		imp.obs = nopObs{}
	}
	return imp
}

func (i *Importer) Type() string { return "csv" }

// Import consumes r to the end and returns all samples in line order.
func (i *Importer) Import(r io.Reader) ([]*domain.Sample, error) {
	samples, _, err := i.ImportWithReport(r)
	return samples, err
}

// ImportWithReport is Import plus line accounting. On a read error no
// samples are returned.
func (i *Importer) ImportWithReport(r io.Reader) ([]*domain.Sample, Report, error) {
	var (
		samples []*domain.Sample
		rep     Report
		reader  = bufio.NewReader(r)
	)

	for {
		raw, err := reader.ReadString('\n')
		if len(raw) > 0 {
			rep.Lines++
			s, outcome := i.parseLine(raw, rep.Lines)
			switch outcome {
			case outcomeSample:
				samples = append(samples, s)
				rep.Samples++
			case outcomeSkipped:
				rep.Skipped++
			case outcomeIgnored:
				rep.Ignored++
			case outcomeInvalid:
				rep.Invalid++
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return samples, rep, nil
			}
			return nil, rep, fmt.Errorf("%w: line %d: %w", ErrRead, rep.Lines+1, err)
		}
	}
}

type outcome uint8

const (
	outcomeSample outcome = iota
	outcomeSkipped
	outcomeIgnored
	outcomeInvalid
)

func (i *Importer) parseLine(raw string, lineNo int) (*domain.Sample, outcome) {
	line := strings.TrimSpace(raw)
	if line == "" || strings.HasPrefix(line, "#") {
		return nil, outcomeSkipped
	}

	rec, ok := classify(line)
	if !ok {
		i.obs.LogInfo("ignored_input",
			ports.Field{Key: "line", Value: line},
			ports.Field{Key: "line_no", Value: lineNo})
		return nil, outcomeIgnored
	}

	ts, err := parseTimestamp(rec.timestamp, i.loc)
	if err != nil {
		i.logInvalid("invalid_timestamp", line, lineNo, err)
		return nil, outcomeInvalid
	}

	var nums [3]float64
	for k, field := range rec.fields {
		v, err := parseNumber(field, i.seps, i.allowNonFinite)
		if err != nil {
			i.logInvalid("invalid_number", line, lineNo, err)
			return nil, outcomeInvalid
		}
		nums[k] = v
	}

	var s *domain.Sample
	if rec.isStatistics() {
		s = domain.NewStatistics(ts, nums[0], nums[1], nums[2])
		// Finite offsets can still push the envelope out of range.
		if !i.allowNonFinite && !(isFinite(s.Min) && isFinite(s.Max)) {
			i.logInvalid("invalid_number", line, lineNo, errNonFinite)
			return nil, outcomeInvalid
		}
	} else {
		s = domain.NewScalar(ts, nums[0])
	}
	s.Line = lineNo
	s.Channel = i.channel
	return s, outcomeSample
}

func (i *Importer) logInvalid(msg, line string, lineNo int, err error) {
	i.obs.LogInfo(msg,
		ports.Field{Key: "line", Value: line},
		ports.Field{Key: "line_no", Value: lineNo},
		ports.Field{Key: "error", Value: err.Error()})
}

type nopObs struct{}

func (nopObs) LogInfo(string, ...ports.Field)            {}
func (nopObs) LogError(string, error, ...ports.Field)    {}
func (nopObs) LogCritical(string, error, ...ports.Field) {}
func (nopObs) IncCounter(string, float64)                {}
func (nopObs) ObserveLatency(string, float64)            {}
func (nopObs) SetGauge(string, float64)                  {}

var _ ports.Importer = (*Importer)(nil)

func isFinite(f float64) bool { return !math.IsInf(f, 0) && !math.IsNaN(f) }
