package config

import (
	"time"

	"github.com/mhpenta/imagestudio"
	"github.com/mhpenta/imagestudio/provider/modelscope"
)

// DefaultConfig returns the configuration used before any file or environment
// overrides are applied.
func DefaultConfig() *Config {
	return &Config{
		DefaultProvider: "modelscope",
		Providers: ProvidersConfig{
			ModelScope: ModelScopeConfig{
				BaseURL:       modelscope.DefaultBaseURL,
				Async:         true,
				GenerateModel: modelscope.ModelZImageTurbo,
				EditModel:     modelscope.ModelQwenImageEdit,
				Timeout:       30 * time.Second,
			},
		},
		Poll: PollConfig{
			Interval:    imagestudio.DefaultPollInterval,
			MaxAttempts: imagestudio.DefaultMaxPollAttempts,
		},
		History: HistoryConfig{
			Driver: "memory",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    120 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
	}
}

// ModelScope converts the ModelScope section into an adapter Config.
func (c *Config) ModelScope() modelscope.Config {
	ms := c.Providers.ModelScope
	var cfg modelscope.Config
	if ms.Async {
		cfg = modelscope.DefaultAsyncConfig(ms.APIKey)
	} else {
		cfg = modelscope.DefaultSyncConfig(ms.APIKey)
	}

	if ms.BaseURL != "" {
		cfg.BaseURL = ms.BaseURL
	}
	if ms.Timeout > 0 {
		cfg.Timeout = ms.Timeout
	}

	cfg.Models = imagestudio.ModelTable{imagestudio.ModeGenerate: ms.GenerateModel}
	if ms.EditModel != "" {
		cfg.Models[imagestudio.ModeEdit] = ms.EditModel
	}
	return cfg
}
