package trendimport

import (
	"io"

	"golang.org/x/text/language"

	"github.com/ghalamif/TrendImport/internal/adapters/textimport"
)

type (
	// Importer reads "timestamp value" and "timestamp value min max" lines.
	Importer = textimport.Importer
	// Options configures separators, time zone, channel and diagnostics.
	Options = textimport.Options
	// Separators are the digit grouping and decimal marks of a locale.
	Separators = textimport.Separators
	// Report counts what an import did with each line.
	Report = textimport.Report
)

// ErrRead marks a failure of the input stream; such imports return no samples.
var ErrRead = textimport.ErrRead

// DefaultSeparators reads numbers like 1,234.5.
var DefaultSeparators = textimport.DefaultSeparators

func NewImporter(opts Options) *Importer {
	return textimport.New(opts)
}

// Import is a one-shot NewImporter(opts).Import(r).
func Import(r io.Reader, opts Options) ([]*Sample, error) {
	return textimport.New(opts).Import(r)
}

// SeparatorsFor returns the separators of a locale, e.g. language.German.
func SeparatorsFor(tag language.Tag) Separators {
	return textimport.SeparatorsFor(tag)
}

// SystemSeparators returns the separators of the process locale
// (LC_ALL, LC_NUMERIC, LANG).
func SystemSeparators() Separators {
	return textimport.SystemSeparators()
}
