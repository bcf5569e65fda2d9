package storage_test

import (
	"context"
	"os"
	"path/filepath"
	"screenshot-batch/internal/storage"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestFileStoragePrepare(t *testing.T) {
	ctx := context.Background()
	s, err := storage.NewFileStorage(ctx, storage.FileConfig{})
	if err != nil {
		t.Fatal(err)
	}

	root, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	t.Run("CreatesMissingDirectory", func(t *testing.T) {
		dir := filepath.Join(root, "out", "nested")

		got, err := s.Prepare(ctx, dir)
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(dir, got); diff != "" {
			t.Errorf("(-want +got):\n%s", diff)
		}
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Errorf("expected %s to be a directory: %v", dir, err)
		}
	})

	t.Run("ResolvesSymlink", func(t *testing.T) {
		target := filepath.Join(root, "target")
		if err := os.Mkdir(target, 0755); err != nil {
			t.Fatal(err)
		}
		link := filepath.Join(root, "link")
		if err := os.Symlink(target, link); err != nil {
			t.Skipf("symlinks unavailable: %v", err)
		}

		got, err := s.Prepare(ctx, link)
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(target, got); diff != "" {
			t.Errorf("(-want +got):\n%s", diff)
		}
	})
}

func TestFileStoragePut(t *testing.T) {
	ctx := context.Background()
	s, err := storage.NewFileStorage(ctx, storage.FileConfig{})
	if err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "a.png")

	for _, data := range [][]byte{[]byte("first"), []byte("second")} {
		got, err := s.Put(ctx, path, data)
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(path, got); diff != "" {
			t.Errorf("(-want +got):\n%s", diff)
		}

		read, err := os.ReadFile(got)
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(data, read); diff != "" {
			t.Errorf("(-want +got):\n%s", diff)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("expected only the image to remain, got %d entries", len(entries))
	}
}
