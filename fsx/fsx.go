// Package fsx reads and writes whole files on the local disk or in S3.
//
//	fs, path, err := fsx.Open(ctx, "s3://reports/bench/latest.json")
//	err = fs.WriteFile(ctx, path, data)
package fsx

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/Abraxas-365/eventcraft/errx"
)

var ErrorRegistry = errx.NewRegistry("FSX")

var (
	ErrNotFound     = ErrorRegistry.Register("NOT_FOUND", errx.TypeResolution, http.StatusNotFound, "file not found")
	ErrInvalidPath  = ErrorRegistry.Register("INVALID_PATH", errx.TypeValidation, http.StatusBadRequest, "invalid path")
	ErrReadFailed   = ErrorRegistry.Register("READ_FAILED", errx.TypeInternal, http.StatusInternalServerError, "failed to read file")
	ErrWriteFailed  = ErrorRegistry.Register("WRITE_FAILED", errx.TypeInternal, http.StatusInternalServerError, "failed to write file")
	ErrConfigFailed = ErrorRegistry.Register("CONFIG_FAILED", errx.TypeUnavailable, http.StatusServiceUnavailable, "failed to load storage credentials")
)

// FileSystem defines the interface for file operations
type FileSystem interface {
	ReadFile(ctx context.Context, path string) ([]byte, error)
	WriteFile(ctx context.Context, path string, data []byte) error
	Exists(ctx context.Context, path string) (bool, error)
}

// Open resolves a destination. s3://bucket/key uses the default AWS
// credential chain; anything else is a local path.
func Open(ctx context.Context, dest string) (FileSystem, string, error) {
	if dest == "" {
		return nil, "", ErrorRegistry.New(ErrInvalidPath).WithDetail("reason", "empty destination")
	}
	if !strings.HasPrefix(dest, "s3://") {
		return NewLocal(""), dest, nil
	}

	u, err := url.Parse(dest)
	if err != nil {
		return nil, "", ErrorRegistry.NewWithCause(ErrInvalidPath, err).WithDetail("path", dest)
	}
	key := strings.TrimPrefix(u.Path, "/")
	if u.Host == "" || key == "" {
		return nil, "", ErrorRegistry.New(ErrInvalidPath).WithDetail("path", dest)
	}
	fs, err := NewS3FromEnv(ctx, u.Host)
	if err != nil {
		return nil, "", err
	}
	return fs, key, nil
}
