package fsx

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

// Local stores files under Root, or relative to the working directory when
// Root is empty.
type Local struct {
	Root string
}

func NewLocal(root string) *Local {
	return &Local{Root: root}
}

func (l *Local) resolve(path string) string {
	if l.Root == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(l.Root, path)
}

func (l *Local) ReadFile(_ context.Context, path string) ([]byte, error) {
	data, err := os.ReadFile(l.resolve(path))
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil, ErrorRegistry.NewWithCause(ErrNotFound, err).WithDetail("path", path)
	case err != nil:
		return nil, ErrorRegistry.NewWithCause(ErrReadFailed, err).WithDetail("path", path)
	}
	return data, nil
}

// WriteFile creates missing parent directories.
func (l *Local) WriteFile(_ context.Context, path string, data []byte) error {
	full := l.resolve(path)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return ErrorRegistry.NewWithCause(ErrWriteFailed, err).WithDetail("path", path)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return ErrorRegistry.NewWithCause(ErrWriteFailed, err).WithDetail("path", path)
	}
	return nil
}

func (l *Local) Exists(_ context.Context, path string) (bool, error) {
	_, err := os.Stat(l.resolve(path))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, ErrorRegistry.NewWithCause(ErrReadFailed, err).WithDetail("path", path)
	}
}
