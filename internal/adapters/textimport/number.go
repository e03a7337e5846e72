package textimport

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

// Separators holds the locale-specific digit grouping and decimal marks
// used to read numbers. A zero Grouping disables group removal.
type Separators struct {
	Grouping rune
	Decimal  rune
}

// DefaultSeparators matches the C/en locale.
var DefaultSeparators = Separators{Grouping: ',', Decimal: '.'}

var errNonFinite = errors.New("non-finite number")

// normalize removes every grouping mark, then turns the decimal mark into '.'.
func (s Separators) normalize(text string) string {
	if s.Grouping != 0 {
		text = strings.ReplaceAll(text, string(s.Grouping), "")
	}
	if s.Decimal != 0 && s.Decimal != '.' {
		text = strings.ReplaceAll(text, string(s.Decimal), ".")
	}
	return text
}

// parseNumber converts a numeric token. Overflow to ±Inf is only accepted
// when allowNonFinite is set.
func parseNumber(text string, seps Separators, allowNonFinite bool) (float64, error) {
	v, err := strconv.ParseFloat(seps.normalize(text), 64)
	if err != nil {
		if allowNonFinite && errors.Is(err, strconv.ErrRange) && math.IsInf(v, 0) {
			return v, nil
		}
		return 0, err
	}
	if !allowNonFinite && (math.IsNaN(v) || math.IsInf(v, 0)) {
		return 0, errNonFinite
	}
	return v, nil
}
