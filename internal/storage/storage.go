package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"

	"github.com/gabriel-vasile/mimetype"
)

var (
	ErrNotImage = errors.New("uploaded file is not an image")
	ErrTooLarge = errors.New("uploaded file is too large")
)

// ImageStorage persists uploaded profile images and returns the reference
// stored in an account's imageUrl.
type ImageStorage interface {
	Save(ctx context.Context, file *multipart.FileHeader) (string, error)
	Delete(ctx context.Context, ref string) error
}

// sniff opens the upload, checks its size and content type, and returns a
// reader positioned at the start along with the detected extension.
func sniff(file *multipart.FileHeader, maxBytes int64) (multipart.File, string, error) {
	if file.Size > maxBytes {
		return nil, "", ErrTooLarge
	}

	f, err := file.Open()
	if err != nil {
		return nil, "", fmt.Errorf("open upload: %w", err)
	}

	mtype, err := mimetype.DetectReader(f)
	if err != nil {
		f.Close()
		return nil, "", fmt.Errorf("detect upload type: %w", err)
	}
	if !mtype.Is("image/jpeg") && !mtype.Is("image/png") && !mtype.Is("image/gif") && !mtype.Is("image/webp") {
		f.Close()
		return nil, "", ErrNotImage
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		return nil, "", fmt.Errorf("rewind upload: %w", err)
	}
	return f, mtype.Extension(), nil
}
