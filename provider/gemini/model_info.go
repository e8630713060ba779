package gemini

import "github.com/mhpenta/imagestudio"

// ProviderName is the default name the adapter registers under.
const ProviderName = "gemini"

// Model name constants - the actual API model names.
const (
	// APIModelNanoBanana2 is the actual API name for Gemini 3 Pro Image
	APIModelNanoBanana2 = "gemini-3-pro-image-preview"

	// APIModelNanoBanana1 is the actual API name for Gemini 2.5 Flash Image
	APIModelNanoBanana1 = "gemini-2.5-flash-image"
)

// DefaultModels uses Flash Image for both modes; it edits natively.
func DefaultModels() imagestudio.ModelTable {
	return imagestudio.ModelTable{
		imagestudio.ModeGenerate: APIModelNanoBanana1,
		imagestudio.ModeEdit:     APIModelNanoBanana1,
	}
}

// DefaultRateLimits are the Tier 1 limits for Flash Image.
var DefaultRateLimits = imagestudio.RateLimits{
	TokensPerMinute:   4000000,
	RequestsPerMinute: 500,
}

// AspectRatioFor maps an output size to the aspect ratio Gemini accepts.
// Gemini picks the pixel dimensions itself.
func AspectRatioFor(size imagestudio.ImageSize) string {
	switch size {
	case imagestudio.ImageSize720x1280:
		return "9:16"
	case imagestudio.ImageSize1280x720:
		return "16:9"
	default:
		return "1:1"
	}
}
