package imagestudio

import (
	"strings"
)

// Mode selects between fresh generation and editing of a source image.
type Mode string

const (
	ModeGenerate Mode = "generate"
	ModeEdit     Mode = "edit"
)

// String returns the mode identifier.
func (m Mode) String() string {
	return string(m)
}

// ImageSize represents the output dimensions for generated images.
type ImageSize string

const (
	ImageSize256      ImageSize = "256x256"
	ImageSize512      ImageSize = "512x512"
	ImageSize720x1280 ImageSize = "720x1280"
	ImageSize1280x720 ImageSize = "1280x720"
	ImageSize1024     ImageSize = "1024x1024"

	// ImageSizeDefault is used when a request leaves Size empty.
	ImageSizeDefault = ImageSize1024
)

// SupportedSizes lists every dimension accepted by ValidateSize.
var SupportedSizes = []ImageSize{
	ImageSize256,
	ImageSize512,
	ImageSize720x1280,
	ImageSize1280x720,
	ImageSize1024,
}

// String returns the size in WIDTHxHEIGHT form.
func (s ImageSize) String() string {
	return string(s)
}

// OrDefault returns s, or ImageSizeDefault when s is empty.
func (s ImageSize) OrDefault() ImageSize {
	if s == "" {
		return ImageSizeDefault
	}
	return s
}

// GenerationRequest is the provider-neutral description of one generate or edit call.
type GenerationRequest struct {
	Prompt string
	Mode   Mode

	// SourceImage is required for ModeEdit and ignored for ModeGenerate.
	SourceImage *ImageRef

	// Size is optional; adapters fall back to their own default when empty.
	Size ImageSize
}

// ResolveMode returns ModeEdit when a usable source image is present, ModeGenerate otherwise.
func ResolveMode(source *ImageRef) Mode {
	if source.IsZero() {
		return ModeGenerate
	}
	return ModeEdit
}

// NewGenerationRequest builds a request whose Mode is derived from the source image.
func NewGenerationRequest(prompt string, source *ImageRef, size ImageSize) *GenerationRequest {
	mode := ResolveMode(source)
	req := &GenerationRequest{
		Prompt: prompt,
		Mode:   mode,
		Size:   size,
	}
	if mode == ModeEdit {
		req.SourceImage = source
	}
	return req
}

// Validate checks the request before any network call is made.
func (r *GenerationRequest) Validate() error {
	if r == nil {
		return &ValidationError{Field: "request", Err: ErrEmptyPrompt}
	}
	if err := ValidatePrompt(r.Prompt); err != nil {
		return err
	}
	if err := ValidateSize(r.Size); err != nil {
		return err
	}
	switch r.Mode {
	case ModeGenerate:
		return nil
	case ModeEdit:
		if r.SourceImage.IsZero() {
			return &ValidationError{Field: "source_image", Err: ErrMissingSourceImage}
		}
		return ValidateInputImage(r.SourceImage)
	default:
		return &ValidationError{Field: "mode", Err: ErrUnknownMode}
	}
}

// withPrompt returns a shallow copy of the request with a different prompt.
func (r *GenerationRequest) withPrompt(prompt string) *GenerationRequest {
	cp := *r
	cp.Prompt = prompt
	return &cp
}

// DegradedEditPrompt is the prompt sent when an edit is serviced by re-generation.
// The source image itself is not transmitted, so the output only approximates an edit.
func DegradedEditPrompt(prompt string) string {
	return degradedEditHint + strings.TrimSpace(prompt)
}

const degradedEditHint = "Based on the style and content of the original image: "

// PrepareRequest adapts a request to an adapter's capabilities. When the adapter cannot
// edit, an edit request is rewritten into a generation with a hint-prefixed prompt and
// the second return value reports that the call is degraded.
func PrepareRequest(req *GenerationRequest, caps Capabilities) (*GenerationRequest, bool) {
	if req.Mode != ModeEdit || caps.Edit {
		return req, false
	}
	degraded := req.withPrompt(DegradedEditPrompt(req.Prompt))
	degraded.Mode = ModeGenerate
	degraded.SourceImage = nil
	return degraded, true
}
