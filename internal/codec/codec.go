package codec

import "io"

// Importer interface for reading snapshots from various formats
type Importer interface {
	Parse(r io.Reader) (*Snapshot, error)
	Format() string
}

// Exporter interface for writing snapshots to various formats
type Exporter interface {
	Export(snap *Snapshot, w io.Writer) error
	Format() string
}
