package modelscope

import (
	"net/http"
	"time"

	"github.com/mhpenta/imagestudio"
)

// Model identifiers served by the ModelScope inference API.
const (
	ModelZImageTurbo   = "Tongyi-MAI/Z-Image-Turbo"
	ModelQwenImageEdit = "Qwen/Qwen-Image-Edit"
)

// DefaultBaseURL is the public ModelScope inference endpoint.
const DefaultBaseURL = "https://api-inference.modelscope.cn"

// Config configures a ModelScope adapter. It is built once from application
// configuration and not modified afterwards.
type Config struct {
	// Name identifies the adapter to the orchestrator. Defaults to "modelscope".
	Name string

	APIKey  string
	BaseURL string

	// Models maps each mode to a model identifier. Without an edit row the adapter
	// services edits as degraded generations.
	Models imagestudio.ModelTable

	// DefaultSize is sent when a request leaves Size empty.
	DefaultSize imagestudio.ImageSize

	Timeout    time.Duration
	HTTPClient *http.Client

	Wire WireConfig
}

// WireConfig holds the provider's field names, paths and headers. Response paths use
// gjson syntax.
type WireConfig struct {
	SubmitPath string
	TaskPath   string // fmt pattern with one %s for the task id

	AsyncHeader      string
	AsyncHeaderValue string

	TaskTypeHeader string
	TaskTypeValue  string

	ModelField  string
	PromptField string
	SizeField   string
	ImageField  string

	ImageURLPath  string
	ImageB64Path  string
	TextPath      string
	RequestIDPath string

	TaskIDPath       string
	TaskStatusPath   string
	OutputImagesPath string
	ReasonPaths      []string

	SucceededStates []string
	FailedStates    []string
}

// DefaultWire returns the ModelScope wire format.
func DefaultWire() WireConfig {
	return WireConfig{
		SubmitPath: "/v1/images/generations",
		TaskPath:   "/v1/tasks/%s",

		AsyncHeader:      "X-ModelScope-Async-Mode",
		AsyncHeaderValue: "true",

		TaskTypeHeader: "X-ModelScope-Task-Type",
		TaskTypeValue:  "image_generation",

		ModelField:  "model",
		PromptField: "prompt",
		SizeField:   "size",
		ImageField:  "image_url",

		ImageURLPath:  "images.0.url",
		ImageB64Path:  "images.0.b64_json",
		TextPath:      "text",
		RequestIDPath: "request_id",

		TaskIDPath:       "task_id",
		TaskStatusPath:   "task_status",
		OutputImagesPath: "output_images",
		ReasonPaths:      []string{"errors.message", "error.message", "message"},

		SucceededStates: []string{"SUCCEED", "SUCCEEDED"},
		FailedStates:    []string{"FAILED"},
	}
}

// DefaultSyncConfig returns a synchronous configuration. Z-Image-Turbo has no edit
// model, so edits are degraded.
func DefaultSyncConfig(apiKey string) Config {
	return Config{
		APIKey:  apiKey,
		BaseURL: DefaultBaseURL,
		Models: imagestudio.ModelTable{
			imagestudio.ModeGenerate: ModelZImageTurbo,
		},
		DefaultSize: imagestudio.ImageSize1024,
		Timeout:     120 * time.Second,
		Wire:        DefaultWire(),
	}
}

// DefaultAsyncConfig returns an asynchronous configuration with a native edit model.
func DefaultAsyncConfig(apiKey string) Config {
	cfg := DefaultSyncConfig(apiKey)
	cfg.Models = imagestudio.ModelTable{
		imagestudio.ModeGenerate: ModelZImageTurbo,
		imagestudio.ModeEdit:     ModelQwenImageEdit,
	}
	cfg.Timeout = 30 * time.Second
	return cfg
}

// SupportedSizes lists the sizes accepted by ModelScope image models.
var SupportedSizes = []imagestudio.ImageSize{
	imagestudio.ImageSize256,
	imagestudio.ImageSize512,
	imagestudio.ImageSize720x1280,
	imagestudio.ImageSize1024,
}

func (c Config) withDefaults() Config {
	if c.Name == "" {
		c.Name = "modelscope"
	}
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.DefaultSize == "" {
		c.DefaultSize = imagestudio.ImageSize1024
	}
	if c.Wire.SubmitPath == "" {
		c.Wire = DefaultWire()
	}
	if c.Models == nil {
		c.Models = imagestudio.ModelTable{imagestudio.ModeGenerate: ModelZImageTurbo}
	}
	if c.HTTPClient == nil {
		timeout := c.Timeout
		if timeout == 0 {
			timeout = 120 * time.Second
		}
		c.HTTPClient = &http.Client{Timeout: timeout}
	}
	return c
}
