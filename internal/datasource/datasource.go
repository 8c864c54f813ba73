// Package datasource defines how pipeline stages obtain raw input bytes.
package datasource

import (
	"context"
	"io"
)

// Source opens a fresh reader over its input. Each call starts from the
// beginning; readers are forward-only.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}
