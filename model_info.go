package imagestudio

import "time"

// Capabilities describes what an adapter supports natively.
type Capabilities struct {
	// Edit is true when the provider conditions output on a source image.
	// Without it, edits are degraded to hint-prefixed generations.
	Edit bool

	// Async is true for task-queue providers that must be polled.
	Async bool

	// Sizes lists supported output sizes. Empty means any size in SupportedSizes.
	Sizes []ImageSize
}

// SupportsSize reports whether size is acceptable for the adapter.
func (c Capabilities) SupportsSize(size ImageSize) bool {
	if size == "" || len(c.Sizes) == 0 {
		return true
	}
	for _, s := range c.Sizes {
		if s == size {
			return true
		}
	}
	return false
}

// ModelTable maps a mode to the provider's model identifier. Adding a backend means
// adding a table and an adapter; the orchestrator does not branch on model names.
type ModelTable map[Mode]string

// ModelFor returns the model for mode. When no edit row exists the generate model is
// returned and native reports false.
func (t ModelTable) ModelFor(mode Mode) (model string, native bool) {
	if m, ok := t[mode]; ok && m != "" {
		return m, true
	}
	return t[ModeGenerate], false
}

// HasEdit reports whether the table carries a dedicated edit model.
func (t ModelTable) HasEdit() bool {
	_, native := t.ModelFor(ModeEdit)
	return native
}

// RateLimits defines rate limiting parameters for a provider.
type RateLimits struct {
	TokensPerMinute   int
	RequestsPerMinute int
}

// EstimatedGenerationTime returns a rough wall time for one generation at size,
// suitable for progress indicators.
func EstimatedGenerationTime(size ImageSize) time.Duration {
	switch size {
	case ImageSize256, ImageSize512:
		return 7 * time.Second
	case ImageSize720x1280, ImageSize1280x720:
		return 10 * time.Second
	default:
		return 14 * time.Second
	}
}
