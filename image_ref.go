package imagestudio

import (
	"encoding/base64"
	"fmt"
	"strings"
)

const (
	dataURIScheme = "data:"
	base64Marker  = ";base64,"

	// CanonicalImagePrefix is attached to inline PNG payloads returned to callers.
	CanonicalImagePrefix = "data:image/png;base64,"
)

// ImageRef references an image either inline (Data) or remotely (URL).
type ImageRef struct {
	// Data contains raw image bytes for inline images.
	Data []byte

	// MIMEType of Data. Empty is treated as image/png.
	MIMEType string

	// URL is set for remote images and passed through untouched.
	URL string
}

// IsZero reports whether the reference carries no image at all. It is nil-safe.
func (r *ImageRef) IsZero() bool {
	return r == nil || (len(r.Data) == 0 && r.URL == "")
}

// IsURL reports whether the image is a remote reference.
func (r *ImageRef) IsURL() bool {
	return r != nil && len(r.Data) == 0 && r.URL != ""
}

// Base64 returns the prefix-free base64 payload, or the URL for remote images.
// This is the form transmitted to providers.
func (r *ImageRef) Base64() string {
	if r == nil {
		return ""
	}
	if len(r.Data) == 0 {
		return r.URL
	}
	return base64.StdEncoding.EncodeToString(r.Data)
}

// String returns the canonical data URI for inline images or the URL for remote ones.
func (r *ImageRef) String() string {
	if r == nil {
		return ""
	}
	if len(r.Data) == 0 {
		return r.URL
	}
	mime := r.MIMEType
	if mime == "" || mime == "image/png" {
		return CanonicalImagePrefix + r.Base64()
	}
	return dataURIScheme + mime + base64Marker + r.Base64()
}

// StripDataURIPrefix removes a leading "data:<mime>;base64," envelope if present.
func StripDataURIPrefix(s string) string {
	if !strings.HasPrefix(s, dataURIScheme) {
		return s
	}
	if i := strings.Index(s, ","); i >= 0 {
		return s[i+1:]
	}
	return s
}

// CanonicalImageRef converts a provider payload into an ImageRef. http(s) URLs pass
// through; anything else is treated as base64 image data with or without a data URI
// envelope. Returns nil for an empty payload.
func CanonicalImageRef(payload string) (*ImageRef, error) {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return nil, nil
	}
	if isRemoteURL(payload) {
		return &ImageRef{URL: payload}, nil
	}

	mime := "image/png"
	if strings.HasPrefix(payload, dataURIScheme) {
		if m := mimeFromDataURI(payload); m != "" {
			mime = m
		}
	}

	data, err := base64.StdEncoding.DecodeString(StripDataURIPrefix(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImageRef, err)
	}
	return &ImageRef{Data: data, MIMEType: mime}, nil
}

// ParseImageRef parses user input (data URI, bare base64 or URL) into an ImageRef.
func ParseImageRef(s string) (*ImageRef, error) {
	ref, err := CanonicalImageRef(s)
	if err != nil {
		return nil, &ValidationError{Field: "image", Err: err}
	}
	if ref == nil {
		return nil, &ValidationError{Field: "image", Err: ErrEmptyImageData}
	}
	return ref, nil
}

func isRemoteURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

func mimeFromDataURI(s string) string {
	rest := strings.TrimPrefix(s, dataURIScheme)
	end := strings.IndexAny(rest, ";,")
	if end <= 0 {
		return ""
	}
	return rest[:end]
}
