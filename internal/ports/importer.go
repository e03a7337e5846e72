package ports

import (
	"io"

	"github.com/ghalamif/TrendImport/internal/domain"
)

// Importer turns a text stream into samples. Implementations return either
// the complete sample sequence or an error; never a partial result.
type Importer interface {
	Type() string
	Import(r io.Reader) ([]*domain.Sample, error)
}
