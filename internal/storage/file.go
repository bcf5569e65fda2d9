package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

type fileStorage struct {
	config FileConfig
}

type FileConfig struct {
	DirMode  os.FileMode
	FileMode os.FileMode
}

// NewFileStorage creates a storage backend writing to the local filesystem
func NewFileStorage(ctx context.Context, f FileConfig) (Storage, error) {
	if f.DirMode == 0 {
		f.DirMode = 0755
	}
	if f.FileMode == 0 {
		f.FileMode = 0644
	}

	return &fileStorage{
		config: f,
	}, nil
}

// Prepare creates dir when it is missing and resolves it to an absolute path
// with symlinks evaluated.
func (a *fileStorage) Prepare(ctx context.Context, dir string) (string, error) {
	if dir == "" {
		dir = "screenshots"
	}

	if err := os.MkdirAll(dir, a.config.DirMode); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve output directory: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", fmt.Errorf("failed to resolve output directory: %w", err)
	}
	return resolved, nil
}

func (a *fileStorage) Put(ctx context.Context, path string, data []byte) (string, error) {
	if err := os.MkdirAll(filepath.Dir(path), a.config.DirMode); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	// Write next to the target and rename so a reader never sees a partial image.
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return "", fmt.Errorf("failed to create temporary file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), a.config.FileMode); err != nil {
		return "", fmt.Errorf("failed to set file mode: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}

	return path, nil
}
