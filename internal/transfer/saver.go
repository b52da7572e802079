package transfer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/xinstan/xinstan/internal/objectstore"
)

// ErrInsufficientSpace is returned when the output directory cannot hold the object.
var ErrInsufficientSpace = errors.New("insufficient disk space")

// FileSaver writes objects into a directory.
type FileSaver struct {
	dir string

	// freeSpace reports available bytes; false means unknown
	freeSpace func(dir string) (int64, bool)
}

// NewFileSaver creates a saver rooted at dir.
func NewFileSaver(dir string) *FileSaver {
	return &FileSaver{dir: dir, freeSpace: freeDiskSpace}
}

// Save writes blob to dir/filename through a temp file so a partial write never
// leaves a truncated file under the final name.
func (s *FileSaver) Save(ctx context.Context, filename string, blob objectstore.Blob) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if filename == "" || filepath.Base(filename) != filename {
		return "", fmt.Errorf("invalid filename %q", filename)
	}

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	if free, ok := s.freeSpace(s.dir); ok && free < int64(blob.Size()) {
		return "", fmt.Errorf("%w: need %d bytes, %d available", ErrInsufficientSpace, blob.Size(), free)
	}

	finalPath := filepath.Join(s.dir, filename)
	tmp, err := os.CreateTemp(s.dir, "."+filename+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(blob.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("close file: %w", err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("rename file: %w", err)
	}

	return finalPath, nil
}
