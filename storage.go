package imagestudio

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Storage persists generated images and returns where they can be fetched.
// Implementations can wrap existing storage clients (GCS, S3, etc.).
type Storage interface {
	// SaveFile saves image data under path and returns its public URL or location.
	// The path includes the full object path (e.g., "images/2024/01/output.png").
	SaveFile(ctx context.Context, data []byte, path string, contentType string) (string, error)
}

// StorageResult contains information about a saved image.
type StorageResult struct {
	// URL is where the image can be accessed
	URL string

	// Path is the storage path/key where the image was saved
	Path string

	// Size is the number of bytes saved
	Size int
}

// SaveImage writes an inline image to storage at basePath plus an extension derived from
// its MIME type. Remote images are already hosted and are returned without copying.
func SaveImage(ctx context.Context, storage Storage, ref *ImageRef, basePath string) (*StorageResult, error) {
	if storage == nil {
		return nil, ErrStorageNotConfigured
	}
	if ref.IsZero() {
		return nil, ErrNoImage
	}
	if ref.IsURL() {
		return &StorageResult{URL: ref.URL}, nil
	}

	mime := ref.MIMEType
	if mime == "" {
		mime = "image/png"
	}
	path := basePath + "." + extensionFromMIME(mime)

	url, err := storage.SaveFile(ctx, ref.Data, path, mime)
	if err != nil {
		return nil, fmt.Errorf("saving %s: %w", path, err)
	}
	return &StorageResult{URL: url, Path: path, Size: len(ref.Data)}, nil
}

// FileStorage stores images under a local directory.
type FileStorage struct {
	Dir string
}

var _ Storage = (*FileStorage)(nil)

// SaveFile writes data to Dir/path, creating parent directories, and returns the
// absolute file path.
func (s *FileStorage) SaveFile(ctx context.Context, data []byte, path string, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	full := filepath.Join(s.Dir, filepath.Clean("/"+path))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return "", err
	}
	return filepath.Abs(full)
}

// LoadImageFile reads a local image and infers its MIME type from the extension.
func LoadImageFile(path string) (*ImageRef, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	ref := &ImageRef{Data: data, MIMEType: GetMIMEType(path)}
	if err := ValidateInputImage(ref); err != nil {
		return nil, err
	}
	return ref, nil
}

func GetMIMEType(filePath string) string {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".webp":
		return "image/webp"
	case ".gif":
		return "image/gif"
	default:
		return "image/png"
	}
}

// extensionFromMIME returns a file extension for common image MIME types.
func extensionFromMIME(mime string) string {
	switch mime {
	case "image/png":
		return "png"
	case "image/jpeg":
		return "jpg"
	case "image/webp":
		return "webp"
	case "image/gif":
		return "gif"
	default:
		return "png"
	}
}
