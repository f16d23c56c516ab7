package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

type LocalStorage struct { // implements ObjectStorage
	dir     string
	baseURL string
}

func NewLocalStorage(dir, baseURL string) (*LocalStorage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("error creating upload directory: %w", err)
	}
	return &LocalStorage{dir: dir, baseURL: baseURL}, nil
}

// Dir is the directory served under the uploads path.
func (s *LocalStorage) Dir() string {
	return s.dir
}

func (s *LocalStorage) Upload(ctx context.Context, key, contentType string, body io.Reader) (string, error) {
	clean := filepath.Clean("/" + key)
	if strings.Contains(clean, "..") {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	dst := filepath.Join(s.dir, clean)

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fmt.Errorf("error creating object directory: %w", err)
	}

	f, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return "", fmt.Errorf("error creating object: %w", err)
	}
	defer os.Remove(f.Name())

	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		return "", fmt.Errorf("error writing object: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("error writing object: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.Rename(f.Name(), dst); err != nil {
		return "", fmt.Errorf("error storing object: %w", err)
	}

	storageLogger.Debug().Str("key", key).Str("content_type", contentType).Msg("Object stored locally")
	return joinURL(s.baseURL, filepath.ToSlash(strings.TrimPrefix(clean, "/"))), nil
}
