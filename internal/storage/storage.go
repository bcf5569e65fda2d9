package storage

import (
	"context"
)

type Storage interface {
	// Prepare makes dir ready to receive objects and returns its canonical form,
	// which callers use as the directory part of every path passed to Put.
	Prepare(ctx context.Context, dir string) (string, error)
	// Put stores data at path and returns the storage URL
	Put(ctx context.Context, path string, data []byte) (string, error)
}
