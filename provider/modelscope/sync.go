package modelscope

import (
	"context"
	"net/http"

	"github.com/mhpenta/imagestudio"
)

// SyncAdapter calls the generation endpoint and waits for the image in the response.
type SyncAdapter struct {
	client
}

var _ imagestudio.SyncAdapter = (*SyncAdapter)(nil)

// NewSync creates a synchronous adapter.
func NewSync(cfg Config) *SyncAdapter {
	return &SyncAdapter{client{cfg: cfg.withDefaults()}}
}

// Name returns the configured provider name.
func (a *SyncAdapter) Name() string { return a.cfg.Name }

// Capabilities reports native edit support only when an edit model is configured.
func (a *SyncAdapter) Capabilities() imagestudio.Capabilities {
	return imagestudio.Capabilities{
		Edit:  a.cfg.Models.HasEdit(),
		Async: false,
		Sizes: SupportedSizes,
	}
}

// Close releases idle connections.
func (a *SyncAdapter) Close() error {
	a.cfg.HTTPClient.CloseIdleConnections()
	return nil
}

// Generate performs one round trip. Edits without a configured edit model are serviced
// as degraded generations and flagged as such.
func (a *SyncAdapter) Generate(ctx context.Context, req *imagestudio.GenerationRequest) (*imagestudio.GenerationResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	prepared, degraded := imagestudio.PrepareRequest(req, a.Capabilities())
	model, _ := a.cfg.Models.ModelFor(prepared.Mode)

	data, err := a.do(ctx, http.MethodPost, a.cfg.Wire.SubmitPath, a.buildBody(model, prepared), nil)
	if err != nil {
		return nil, err
	}

	doc, err := a.parseJSON(data)
	if err != nil {
		return nil, err
	}

	payload := lookup(doc, a.cfg.Wire.ImageURLPath)
	if payload == "" {
		payload = lookup(doc, a.cfg.Wire.ImageB64Path)
	}
	img, err := imagestudio.CanonicalImageRef(payload)
	if err != nil {
		return nil, &imagestudio.ProviderError{Provider: a.cfg.Name, Body: string(data), Err: err}
	}

	result := &imagestudio.GenerationResult{
		Image:    img,
		Text:     lookup(doc, a.cfg.Wire.TextPath),
		Degraded: degraded,
		Provider: a.cfg.Name,
		Model:    model,
	}
	if id := lookup(doc, a.cfg.Wire.RequestIDPath); id != "" {
		result.ProviderMeta = map[string]any{"request_id": id}
	}
	return result, nil
}
