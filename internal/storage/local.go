package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// LocalStorage writes uploads into a directory served as static files.
type LocalStorage struct {
	dir      string
	maxBytes int64
}

func NewLocalStorage(dir string, maxBytes int64) (*LocalStorage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &LocalStorage{dir: dir, maxBytes: maxBytes}, nil
}

// Save stores the upload under a random name and returns that name.
func (s *LocalStorage) Save(_ context.Context, file *multipart.FileHeader) (string, error) {
	src, ext, err := sniff(file, s.maxBytes)
	if err != nil {
		return "", err
	}
	defer src.Close()

	name := uuid.NewString() + ext
	dst, err := os.OpenFile(filepath.Join(s.dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create image file: %w", err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(dst.Name())
		return "", fmt.Errorf("write image file: %w", err)
	}
	if err := dst.Close(); err != nil {
		return "", fmt.Errorf("close image file: %w", err)
	}
	return name, nil
}

// Delete removes a previously saved file. Missing files are not an error.
func (s *LocalStorage) Delete(_ context.Context, ref string) error {
	if ref == "" {
		return nil
	}
	err := os.Remove(filepath.Join(s.dir, filepath.Base(ref)))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove image file: %w", err)
	}
	return nil
}
