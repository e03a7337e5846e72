package textimport

import "regexp"

const (
	// YYYY-MM-DD HH:MM:SS.fff with '-' or '/' date separators and any
	// number of fraction digits.
	timestampPattern = `([0-9]{4}[-/][0-9]{2}[-/][0-9]{2} [0-9]{2}:[0-9]{2}:[0-9]{2}\.[0-9]*)`
	separatorPattern = `[ \t,]+`
	// Syntactic filter only; validity is decided by parseNumber.
	numberPattern = `([-+0-9.,eE]+)`
	trailerPattern = `\s*.*$`
)

var (
	// timestamp value negativeError positiveError [ignored]
	statisticsLine = regexp.MustCompile(`^\s*` + timestampPattern +
		separatorPattern + numberPattern +
		separatorPattern + numberPattern +
		separatorPattern + numberPattern + trailerPattern)

	// timestamp value [ignored]
	scalarLine = regexp.MustCompile(`^\s*` + timestampPattern +
		separatorPattern + numberPattern + trailerPattern)
)

// record is the raw text of one recognized line.
type record struct {
	timestamp string
	fields    []string
}

func (r record) isStatistics() bool { return len(r.fields) == 3 }

// classify tries the statistics shape before the scalar shape; a scalar
// match on a statistics line would silently drop min and max.
func classify(line string) (record, bool) {
	if m := statisticsLine.FindStringSubmatch(line); m != nil {
		return record{timestamp: m[1], fields: m[2:5]}, true
	}
	if m := scalarLine.FindStringSubmatch(line); m != nil {
		return record{timestamp: m[1], fields: m[2:3]}, true
	}
	return record{}, false
}
