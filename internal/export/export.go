package export

import (
	"context"
	"errors"
)

var (
	ErrTimeout      = errors.New("export timed out")
	ErrExportFailed = errors.New("export failed")
)

// Kind identifies which of the two stores an Exporter snapshots.
type Kind string

const (
	KindRelational Kind = "relational"
	KindDocument   Kind = "document"
)

// Exporter produces a complete point-in-time dump of one store at dest.
// dest is a file path for relational exports and a directory for document
// exports; the exporter creates it and writes nothing outside it.
type Exporter interface {
	Kind() Kind
	Store() string
	Export(ctx context.Context, dest string) error
}
