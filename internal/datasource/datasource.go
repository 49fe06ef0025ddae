// Package datasource abstracts where raw input bytes come from and turns them
// into numbered lines for the parser.
package datasource

import (
	"context"
	"io"
)

// Source opens an input stream. Callers own the returned ReadCloser.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}
