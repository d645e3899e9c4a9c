package types

// Config represents the agent core configuration.
type Config struct {
	// Model selection, "provider/model"
	Model string `json:"model,omitempty" yaml:"model,omitempty"`

	// SystemPrompt is sent ahead of every conversation. Empty disables the system entry.
	SystemPrompt string `json:"systemPrompt,omitempty" yaml:"systemPrompt,omitempty"`

	// Temperature used for generations; nil means the default.
	Temperature *float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`

	// Provider configs
	Provider map[string]ProviderConfig `json:"provider,omitempty" yaml:"provider,omitempty"`

	Storage   StorageConfig   `json:"storage,omitempty" yaml:"storage,omitempty"`
	Stream    StreamConfig    `json:"stream,omitempty" yaml:"stream,omitempty"`
	Log       LogConfig       `json:"log,omitempty" yaml:"log,omitempty"`
	Telemetry TelemetryConfig `json:"telemetry,omitempty" yaml:"telemetry,omitempty"`
	Server    ServerConfig    `json:"server,omitempty" yaml:"server,omitempty"`
}

// ProviderConfig holds configuration for a specific provider.
type ProviderConfig struct {
	APIKey  string `json:"apiKey,omitempty" yaml:"apiKey,omitempty"`
	BaseURL string `json:"baseURL,omitempty" yaml:"baseURL,omitempty"`

	// Model/Endpoint ID (for providers like ARK that require endpoint specification)
	Model string `json:"model,omitempty" yaml:"model,omitempty"`

	// Nested options
	Options *ProviderOptions `json:"options,omitempty" yaml:"options,omitempty"`

	Disable bool `json:"disable,omitempty" yaml:"disable,omitempty"`
}

// ProviderOptions holds nested provider options.
type ProviderOptions struct {
	APIKey  string `json:"apiKey,omitempty" yaml:"apiKey,omitempty"`
	BaseURL string `json:"baseURL,omitempty" yaml:"baseURL,omitempty"`
}

// StorageConfig locates the relational store.
type StorageConfig struct {
	// Path of the SQLite database file. Defaults to <data>/agentcore.db.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

// StreamConfig tunes the dual-cadence flushing of a generation.
type StreamConfig struct {
	RendererIntervalMs int `json:"rendererIntervalMs,omitempty" yaml:"rendererIntervalMs,omitempty"`
	StorageIntervalMs  int `json:"storageIntervalMs,omitempty" yaml:"storageIntervalMs,omitempty"`
}

// LogConfig configures logging output.
type LogConfig struct {
	Level      string `json:"level,omitempty" yaml:"level,omitempty"`
	File       string `json:"file,omitempty" yaml:"file,omitempty"`
	MaxSizeMB  int    `json:"maxSizeMB,omitempty" yaml:"maxSizeMB,omitempty"`
	MaxBackups int    `json:"maxBackups,omitempty" yaml:"maxBackups,omitempty"`
	MaxAgeDays int    `json:"maxAgeDays,omitempty" yaml:"maxAgeDays,omitempty"`
}

// TelemetryConfig configures metric export.
type TelemetryConfig struct {
	Enabled  bool   `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	Insecure bool   `json:"insecure,omitempty" yaml:"insecure,omitempty"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Hostname string `json:"hostname,omitempty" yaml:"hostname,omitempty"`
	Port     int    `json:"port,omitempty" yaml:"port,omitempty"`
}

// Model represents an LLM model.
type Model struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	ProviderID        string `json:"providerID"`
	ContextLength     int    `json:"contextLength"`
	MaxOutputTokens   int    `json:"maxOutputTokens,omitempty"`
	SupportsTools     bool   `json:"supportsTools"`
	SupportsReasoning bool   `json:"supportsReasoning,omitempty"`
}

// Config returns the generation limits of the model.
func (m Model) Config() ModelConfig {
	return ModelConfig{ContextLength: m.ContextLength, MaxTokens: m.MaxOutputTokens}
}

// ModelRef references a specific model from a provider.
type ModelRef struct {
	ProviderID string `json:"providerId"`
	ModelID    string `json:"modelId"`
}

// ModelConfig carries the limits a generation must respect.
type ModelConfig struct {
	ContextLength int `json:"contextLength"`
	MaxTokens     int `json:"maxTokens"`
}
