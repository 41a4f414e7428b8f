package storage

import (
	"context"
	"fmt"
	"mime/multipart"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/google/uuid"
)

// CloudinaryStorage uploads images to Cloudinary and stores the secure URL.
type CloudinaryStorage struct {
	cld      *cloudinary.Cloudinary
	folder   string
	maxBytes int64
}

func NewCloudinaryStorage(cloudinaryURL, folder string, maxBytes int64) (*CloudinaryStorage, error) {
	cld, err := cloudinary.NewFromURL(cloudinaryURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cloudinary client: %w", err)
	}
	cld.Config.URL.Secure = true

	return &CloudinaryStorage{cld: cld, folder: folder, maxBytes: maxBytes}, nil
}

func (s *CloudinaryStorage) Save(ctx context.Context, file *multipart.FileHeader) (string, error) {
	src, _, err := sniff(file, s.maxBytes)
	if err != nil {
		return "", err
	}
	defer src.Close()

	params := uploader.UploadParams{
		Folder:         s.folder,
		PublicID:       uuid.NewString(),
		UniqueFilename: api.Bool(true),
		Overwrite:      api.Bool(false),
		Format:         "webp",
		Transformation: "q_auto",
	}

	resp, err := s.cld.Upload.Upload(ctx, src, params)
	if err != nil {
		return "", fmt.Errorf("failed to upload image to cloudinary: %w", err)
	}
	if resp.SecureURL == "" {
		return "", fmt.Errorf("cloudinary upload succeeded but secure URL is empty")
	}
	return resp.SecureURL, nil
}

func (s *CloudinaryStorage) Delete(ctx context.Context, ref string) error {
	publicID := extractPublicID(ref)
	if publicID == "" {
		return fmt.Errorf("could not extract public ID from URL: %s", ref)
	}

	resp, err := s.cld.Upload.Destroy(ctx, uploader.DestroyParams{
		PublicID:   publicID,
		Invalidate: api.Bool(true),
	})
	if err != nil {
		return fmt.Errorf("failed to delete image from cloudinary: %w", err)
	}
	if resp.Result != "ok" && resp.Result != "not found" {
		return fmt.Errorf("cloudinary destroy api returned result: %s", resp.Result)
	}
	return nil
}

// extractPublicID turns
// https://res.cloudinary.com/demo/image/upload/v123/folder/sample.webp into folder/sample.
func extractPublicID(fileURL string) string {
	u, err := url.Parse(fileURL)
	if err != nil {
		return ""
	}

	parts := strings.Split(u.Path, "/")
	uploadIndex := -1
	for i, p := range parts {
		if p == "upload" {
			uploadIndex = i
			break
		}
	}
	if uploadIndex == -1 || uploadIndex+1 >= len(parts) {
		return ""
	}

	rest := parts[uploadIndex+1:]
	if len(rest) > 1 && isVersionSegment(rest[0]) {
		rest = rest[1:]
	}

	withExt := strings.Join(rest, "/")
	return strings.TrimSuffix(withExt, filepath.Ext(withExt))
}

func isVersionSegment(s string) bool {
	if len(s) < 2 || s[0] != 'v' {
		return false
	}
	for _, r := range s[1:] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
