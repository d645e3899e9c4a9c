package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/opencode-ai/agentcore/pkg/types"
)

// configNames are the file names probed in every config directory, lowest precedence first.
var configNames = []string{"agentcore.json", "agentcore.jsonc", "agentcore.yaml", "agentcore.yml"}

var (
	envPattern  = regexp.MustCompile(`\{env:([^}]+)\}`)
	filePattern = regexp.MustCompile(`\{file:([^}]+)\}`)
)

// Load loads configuration from multiple sources (priority order):
// 1. Global config (~/.config/agentcore/)
// 2. Project config (<dir>/ and <dir>/.agentcore/)
// 3. AGENTCORE_CONFIG file
// 4. AGENTCORE_CONFIG_CONTENT inline JSON
// 5. Environment variables
//
// A .env file in directory is loaded first without overriding the real environment.
func Load(directory string) (*types.Config, error) {
	config := &types.Config{
		Provider: make(map[string]types.ProviderConfig),
	}

	if directory != "" {
		_ = godotenv.Load(filepath.Join(directory, ".env"))
	}

	loaded := make(map[string]bool)
	loadOnce := func(path string, baseDir string) error {
		absPath, err := filepath.Abs(path)
		if err != nil || loaded[absPath] {
			return nil
		}
		err = loadConfigFile(path, config, baseDir)
		if os.IsNotExist(err) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("config %s: %w", path, err)
		}
		loaded[absPath] = true
		return nil
	}

	var dirs []string
	dirs = append(dirs, GetPaths().Config)
	if directory != "" {
		dirs = append(dirs, directory, filepath.Join(directory, ".agentcore"))
	}
	for _, dir := range dirs {
		for _, name := range configNames {
			if err := loadOnce(filepath.Join(dir, name), dir); err != nil {
				return nil, err
			}
		}
	}

	if configPath := os.Getenv("AGENTCORE_CONFIG"); configPath != "" {
		if err := loadOnce(configPath, filepath.Dir(configPath)); err != nil {
			return nil, err
		}
	}

	if configContent := os.Getenv("AGENTCORE_CONFIG_CONTENT"); configContent != "" {
		var inline types.Config
		if err := json.Unmarshal(jsonc.ToJSON([]byte(configContent)), &inline); err != nil {
			return nil, fmt.Errorf("AGENTCORE_CONFIG_CONTENT: %w", err)
		}
		mergeConfig(config, &inline)
	}

	applyEnvOverrides(config)
	normalizeProviderConfig(config)
	applyDefaults(config)

	return config, nil
}

// loadConfigFile loads a single config file with interpolation support.
func loadConfigFile(path string, config *types.Config, baseDir string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	data = interpolate(data, baseDir)

	var fileConfig types.Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &fileConfig)
	default:
		err = json.Unmarshal(jsonc.ToJSON(data), &fileConfig)
	}
	if err != nil {
		return err
	}

	mergeConfig(config, &fileConfig)
	return nil
}

// interpolate processes {env:VAR} and {file:path} placeholders.
func interpolate(data []byte, baseDir string) []byte {
	str := envPattern.ReplaceAllStringFunc(string(data), func(match string) string {
		return os.Getenv(envPattern.FindStringSubmatch(match)[1])
	})

	str = filePattern.ReplaceAllStringFunc(str, func(match string) string {
		filePath := filePattern.FindStringSubmatch(match)[1]
		if strings.HasPrefix(filePath, "~/") {
			filePath = filepath.Join(os.Getenv("HOME"), filePath[2:])
		} else if !filepath.IsAbs(filePath) {
			filePath = filepath.Join(baseDir, filePath)
		}

		content, err := os.ReadFile(filePath)
		if err != nil {
			return match
		}

		// Escaped for a JSON string; YAML double-quoted scalars accept the same escapes.
		escaped := strings.ReplaceAll(string(content), "\\", "\\\\")
		escaped = strings.ReplaceAll(escaped, "\"", "\\\"")
		escaped = strings.ReplaceAll(escaped, "\n", "\\n")
		escaped = strings.ReplaceAll(escaped, "\r", "\\r")
		escaped = strings.ReplaceAll(escaped, "\t", "\\t")
		return escaped
	})

	return []byte(str)
}

// normalizeProviderConfig merges Options fields into direct fields.
func normalizeProviderConfig(config *types.Config) {
	for name, provider := range config.Provider {
		if provider.Options != nil {
			if provider.Options.APIKey != "" {
				provider.APIKey = provider.Options.APIKey
			}
			if provider.Options.BaseURL != "" {
				provider.BaseURL = provider.Options.BaseURL
			}
		}
		config.Provider[name] = provider
	}
}

// mergeConfig merges source config into target.
func mergeConfig(target, source *types.Config) {
	if source.Model != "" {
		target.Model = source.Model
	}
	if source.SystemPrompt != "" {
		target.SystemPrompt = source.SystemPrompt
	}
	if source.Temperature != nil {
		target.Temperature = source.Temperature
	}

	if source.Provider != nil {
		if target.Provider == nil {
			target.Provider = make(map[string]types.ProviderConfig)
		}
		for k, v := range source.Provider {
			target.Provider[k] = v
		}
	}

	if source.Storage.Path != "" {
		target.Storage.Path = source.Storage.Path
	}
	if source.Stream.RendererIntervalMs > 0 {
		target.Stream.RendererIntervalMs = source.Stream.RendererIntervalMs
	}
	if source.Stream.StorageIntervalMs > 0 {
		target.Stream.StorageIntervalMs = source.Stream.StorageIntervalMs
	}

	if source.Log.Level != "" {
		target.Log.Level = source.Log.Level
	}
	if source.Log.File != "" {
		target.Log.File = source.Log.File
	}
	if source.Log.MaxSizeMB > 0 {
		target.Log.MaxSizeMB = source.Log.MaxSizeMB
	}
	if source.Log.MaxBackups > 0 {
		target.Log.MaxBackups = source.Log.MaxBackups
	}
	if source.Log.MaxAgeDays > 0 {
		target.Log.MaxAgeDays = source.Log.MaxAgeDays
	}

	if source.Telemetry.Enabled || source.Telemetry.Endpoint != "" {
		target.Telemetry = source.Telemetry
	}

	if source.Server.Hostname != "" {
		target.Server.Hostname = source.Server.Hostname
	}
	if source.Server.Port > 0 {
		target.Server.Port = source.Server.Port
	}
}

// applyEnvOverrides applies environment variable overrides.
func applyEnvOverrides(config *types.Config) {
	providerEnvMap := map[string]string{
		"anthropic": "ANTHROPIC_API_KEY",
		"openai":    "OPENAI_API_KEY",
		"ark":       "ARK_API_KEY",
	}

	for provider, envVar := range providerEnvMap {
		if apiKey := os.Getenv(envVar); apiKey != "" {
			p := config.Provider[provider]
			if p.APIKey == "" {
				p.APIKey = apiKey
				config.Provider[provider] = p
			}
		}
	}

	if model := os.Getenv("AGENTCORE_MODEL"); model != "" {
		config.Model = model
	}
	if prompt, ok := os.LookupEnv("AGENTCORE_SYSTEM_PROMPT"); ok {
		config.SystemPrompt = prompt
	}
	if db := os.Getenv("AGENTCORE_DB"); db != "" {
		config.Storage.Path = db
	}
}

// applyDefaults fills the values every component expects to be set.
func applyDefaults(config *types.Config) {
	if config.Storage.Path == "" {
		config.Storage.Path = GetPaths().DatabasePath()
	}
	if config.Stream.RendererIntervalMs <= 0 {
		config.Stream.RendererIntervalMs = DefaultRendererIntervalMs
	}
	if config.Stream.StorageIntervalMs <= 0 {
		config.Stream.StorageIntervalMs = DefaultStorageIntervalMs
	}
	if config.Server.Hostname == "" {
		config.Server.Hostname = "127.0.0.1"
	}
	if config.Server.Port == 0 {
		config.Server.Port = 8080
	}
}

// Save saves the configuration to a file as indented JSON.
func Save(config *types.Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
