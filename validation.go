package imagestudio

import (
	"errors"
	"fmt"
	"strings"
)

// Validation errors
var (
	ErrEmptyPrompt        = errors.New("prompt cannot be empty")
	ErrMissingSourceImage = errors.New("edit requires a source image")
	ErrEmptyImageData     = errors.New("image data cannot be empty")
	ErrInvalidImageRef    = errors.New("invalid image reference")
	ErrInvalidMIMEType    = errors.New("invalid or unsupported MIME type")
	ErrImageTooLarge      = errors.New("image data exceeds maximum size")
	ErrUnsupportedSize    = errors.New("unsupported image size")
	ErrUnknownMode        = errors.New("unknown generation mode")
)

// MaxImageSize is the maximum allowed inline image size in bytes (20MB)
const MaxImageSize = 20 * 1024 * 1024

// ValidMIMETypes contains the supported image MIME types
var ValidMIMETypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/gif":  true,
}

// ValidatePrompt validates a text prompt.
func ValidatePrompt(prompt string) error {
	if strings.TrimSpace(prompt) == "" {
		return &ValidationError{Field: "prompt", Err: ErrEmptyPrompt}
	}
	return nil
}

// ValidateSize accepts an empty size (provider default) or one of SupportedSizes.
func ValidateSize(size ImageSize) error {
	if size == "" {
		return nil
	}
	for _, s := range SupportedSizes {
		if s == size {
			return nil
		}
	}
	return &ValidationError{Field: "size", Err: fmt.Errorf("%w: %s", ErrUnsupportedSize, size)}
}

// ValidateInputImage validates a source image.
func ValidateInputImage(img *ImageRef) error {
	if img.IsZero() {
		return &ValidationError{Field: "source_image", Err: ErrEmptyImageData}
	}

	if len(img.Data) > 0 {
		if len(img.Data) > MaxImageSize {
			return &ValidationError{
				Field: "source_image",
				Err:   fmt.Errorf("%w: %d bytes (max %d)", ErrImageTooLarge, len(img.Data), MaxImageSize),
			}
		}

		if img.MIMEType != "" && !ValidMIMETypes[img.MIMEType] {
			return &ValidationError{
				Field: "source_image",
				Err:   fmt.Errorf("%w: %s", ErrInvalidMIMEType, img.MIMEType),
			}
		}
	}

	return nil
}
