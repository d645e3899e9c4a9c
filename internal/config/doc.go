// Package config provides configuration loading, merging, and path management.
//
// # Configuration Loading
//
// Load merges configuration from several sources, later sources winning:
//
//  1. Global config (~/.config/agentcore/agentcore.{json,jsonc,yaml,yml})
//  2. Project config (<dir>/agentcore.* and <dir>/.agentcore/agentcore.*)
//  3. AGENTCORE_CONFIG file
//  4. AGENTCORE_CONFIG_CONTENT inline JSON
//  5. Environment variables
//
// A .env file in the project directory is loaded before anything else; it
// never overrides variables already present in the environment.
//
// JSON files may carry comments (tidwall/jsonc). YAML files are parsed with
// yaml.v3. Both support {env:VAR_NAME} and {file:path} interpolation.
//
// # Default-configuration source
//
// [Defaults] wraps a loaded config and answers DefaultModel and
// DefaultSystemPrompt for session creation and prompt building. A fallback
// resolver may be installed for deployments without a configured model.
// [Defaults.Watch] keeps the snapshot current using fsnotify.
//
// # Environment Variable Overrides
//
//   - ANTHROPIC_API_KEY, OPENAI_API_KEY, ARK_API_KEY - provider credentials
//   - AGENTCORE_MODEL - default "provider/model"
//   - AGENTCORE_SYSTEM_PROMPT - default system prompt (may be empty)
//   - AGENTCORE_DB - SQLite database path
package config
