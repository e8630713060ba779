// Package gemini provides a synchronous imagestudio adapter using Google's Gemini API.
//
// This provider uses the Gemini API backend via the official Go SDK:
// https://github.com/googleapis/go-genai
//
// Gemini conditions output on inline image parts, so edits are always native.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/mhpenta/imagestudio"
	"google.golang.org/genai"
)

// Config configures the Gemini adapter.
type Config struct {
	// Name is the provider name reported to the orchestrator. Defaults to "gemini".
	Name string

	// APIKey for the Gemini API. If empty, the SDK reads GOOGLE_API_KEY or GEMINI_API_KEY.
	APIKey string

	// Model overrides the default model for both modes.
	Model string

	// BaseURL overrides the API endpoint.
	BaseURL string

	HTTPClient *http.Client
}

// Adapter implements imagestudio.SyncAdapter on top of genai.
type Adapter struct {
	client         *genai.Client
	name           string
	models         imagestudio.ModelTable
	safetySettings []*genai.SafetySetting
	mu             sync.RWMutex
}

var _ imagestudio.SyncAdapter = (*Adapter)(nil)

// New creates a Gemini adapter.
func New(ctx context.Context, cfg Config) (*Adapter, error) {
	clientCfg := &genai.ClientConfig{
		Backend:    genai.BackendGeminiAPI,
		APIKey:     cfg.APIKey,
		HTTPClient: cfg.HTTPClient,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	name := cfg.Name
	if name == "" {
		name = ProviderName
	}
	models := DefaultModels()
	if cfg.Model != "" {
		models = imagestudio.ModelTable{
			imagestudio.ModeGenerate: cfg.Model,
			imagestudio.ModeEdit:     cfg.Model,
		}
	}

	return &Adapter{
		client: client,
		name:   name,
		models: models,
	}, nil
}

// NewWithAPIKey creates an adapter with an API key and default models.
func NewWithAPIKey(ctx context.Context, apiKey string) (*Adapter, error) {
	return New(ctx, Config{APIKey: apiKey})
}

// SetSafetySettings configures safety settings applied to every request.
func (a *Adapter) SetSafetySettings(settings []*genai.SafetySetting) *Adapter {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.safetySettings = settings
	return a
}

func (a *Adapter) Name() string { return a.name }

func (a *Adapter) Capabilities() imagestudio.Capabilities {
	return imagestudio.Capabilities{
		Edit:  a.models.HasEdit(),
		Async: false,
		Sizes: imagestudio.SupportedSizes,
	}
}

// Close releases any resources held by the adapter.
func (a *Adapter) Close() error {
	// The genai.Client doesn't require explicit closing in the current SDK
	return nil
}

// Generate sends the prompt, plus the source image for edits, in a single request.
func (a *Adapter) Generate(ctx context.Context, req *imagestudio.GenerationRequest) (*imagestudio.GenerationResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	prepared, degraded := imagestudio.PrepareRequest(req, a.Capabilities())
	model, _ := a.models.ModelFor(prepared.Mode)

	parts := make([]*genai.Part, 0, 2)
	if prepared.Mode == imagestudio.ModeEdit {
		parts = append(parts, imagePart(prepared.SourceImage))
	}
	parts = append(parts, &genai.Part{Text: prepared.Prompt})
	contents := []*genai.Content{{Role: "user", Parts: parts}}

	resp, err := a.client.Models.GenerateContent(ctx, model, contents, a.buildGenerateContentConfig(prepared.Size))
	if err != nil {
		return nil, a.classifyError(err)
	}

	result, err := a.parseResult(resp)
	if err != nil {
		return nil, err
	}
	result.Degraded = degraded
	result.Model = model
	return result, nil
}

// imagePart converts a source reference into an inline or file part.
func imagePart(img *imagestudio.ImageRef) *genai.Part {
	if img.IsURL() {
		return &genai.Part{FileData: &genai.FileData{FileURI: img.URL, MIMEType: img.MIMEType}}
	}
	mime := img.MIMEType
	if mime == "" {
		mime = "image/png"
	}
	return &genai.Part{InlineData: &genai.Blob{Data: img.Data, MIMEType: mime}}
}

func (a *Adapter) buildGenerateContentConfig(size imagestudio.ImageSize) *genai.GenerateContentConfig {
	genConfig := &genai.GenerateContentConfig{
		// Enable image output
		ResponseModalities: []string{"TEXT", "IMAGE"},
		ImageConfig:        &genai.ImageConfig{AspectRatio: AspectRatioFor(size)},
	}

	a.mu.RLock()
	if len(a.safetySettings) > 0 {
		genConfig.SafetySettings = a.safetySettings
	}
	a.mu.RUnlock()

	return genConfig
}

// parseResult keeps the first inline image and concatenates text parts.
func (a *Adapter) parseResult(resp *genai.GenerateContentResponse) (*imagestudio.GenerationResult, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, &imagestudio.ProviderError{Provider: a.name, Err: errors.New("empty response from model")}
	}

	result := &imagestudio.GenerationResult{Provider: a.name}
	var text []string

	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part.Thought {
				continue
			}
			if part.Text != "" {
				text = append(text, part.Text)
			}
			if part.InlineData != nil && len(part.InlineData.Data) > 0 && result.Image == nil {
				result.Image = &imagestudio.ImageRef{
					Data:     part.InlineData.Data,
					MIMEType: part.InlineData.MIMEType,
				}
			}
		}
	}
	result.Text = strings.Join(text, "")

	if resp.UsageMetadata != nil {
		result.ProviderMeta = map[string]any{
			"prompt_tokens": int(resp.UsageMetadata.PromptTokenCount),
			"total_tokens":  int(resp.UsageMetadata.TotalTokenCount),
		}
	}
	return result, nil
}

// classifyError maps genai API errors onto the imagestudio taxonomy.
func (a *Adapter) classifyError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		return &imagestudio.ProviderError{Provider: a.name, Err: err}
	}

	if apiErr.Code == http.StatusTooManyRequests || apiErr.Status == "RESOURCE_EXHAUSTED" {
		return &imagestudio.RateLimitError{
			RetryAfter: 60 * time.Second, // API doesn't reliably provide Retry-After
			LimitType:  "requests",
			Provider:   a.name,
			Err:        err,
		}
	}

	return &imagestudio.ProviderError{
		Provider:   a.name,
		StatusCode: apiErr.Code,
		Body:       apiErr.Message,
		Err:        err,
	}
}
