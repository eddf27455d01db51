// Package config implements the configuration surface of spec.md §6 (read
// by the session facade and passed to the loop) plus SPEC_FULL §6's
// additions for wiring the expanded domain stack: extensions_dir,
// llm_provider, tool_schema_validation, checkpoint_backend. Grounded on
// the reference repository's internal/config/types.go's RuntimeConfig
// struct and Default* constant convention, trimmed to this spec's fields
// — the reference repo's proactive-memory/skills/RAG/scheduler surface
// and its CLI-auth/admin-store layering are out of scope.
package config

import "time"

// Default values for every RuntimeConfig field, documented per spec.md
// §6's "every option has a documented default."
const (
	DefaultMaxIterations              = 50
	DefaultTimeoutSeconds             = 300
	DefaultMaxRetries                 = 3
	DefaultMaxTokens                  = 100_000
	DefaultMaxHistory                 = 40
	DefaultRequestIntervalSeconds     = 0
	DefaultEnableDangerousCmdValidate = true
	DefaultMode                       = "confirm"
	DefaultEnableTaskClassification   = false
	DefaultCheckpointInterval         = 1

	DefaultLLMProvider         = "openai"
	DefaultExtensionsDir       = "extensions"
	DefaultToolSchemaValidate  = true
	DefaultCheckpointBackend   = "file"
)

// RuntimeConfig is the full configuration surface the session facade reads
// and passes to the orchestration loop.
type RuntimeConfig struct {
	// Loop budgets (spec.md §6).
	MaxIterations          int     `json:"max_iterations" yaml:"max_iterations"`
	TimeoutSeconds          int     `json:"timeout_seconds" yaml:"timeout_seconds"`
	MaxRetries              int     `json:"max_retries" yaml:"max_retries"`
	MaxTokens               int     `json:"max_tokens" yaml:"max_tokens"`
	MaxHistory              int     `json:"max_history" yaml:"max_history"`
	RequestIntervalSeconds  int     `json:"request_interval_seconds" yaml:"request_interval_seconds"`

	EnableDangerousCommandValidation bool `json:"enable_dangerous_command_validation" yaml:"enable_dangerous_command_validation"`
	DefaultMode                      string `json:"default_mode" yaml:"default_mode"`
	EnableTaskClassification         bool `json:"enable_task_classification" yaml:"enable_task_classification"`
	CheckpointInterval                int  `json:"checkpoint_interval" yaml:"checkpoint_interval"`

	// SearchFiltering lists directory/extension/hidden-file exclusions
	// consumed by external tools (spec.md §6).
	SearchFiltering SearchFilteringConfig `json:"search_filtering" yaml:"search_filtering"`

	// Domain-stack wiring additions (SPEC_FULL §6).
	ExtensionsDir        string `json:"extensions_dir" yaml:"extensions_dir"`
	LLMProvider          string `json:"llm_provider" yaml:"llm_provider"`
	ToolSchemaValidation bool   `json:"tool_schema_validation" yaml:"tool_schema_validation"`
	CheckpointBackend    string `json:"checkpoint_backend" yaml:"checkpoint_backend"`

	Model       string  `json:"model" yaml:"model"`
	Temperature float64 `json:"temperature" yaml:"temperature"`

	BaseURL string `json:"base_url" yaml:"base_url"`
	APIKey  string `json:"api_key" yaml:"api_key"`
}

// SearchFilteringConfig is the directory/extension/hidden-file exclusion
// policy that search-like external tools consult.
type SearchFilteringConfig struct {
	ExcludeDirs       []string `json:"exclude_dirs" yaml:"exclude_dirs"`
	ExcludeExtensions []string `json:"exclude_extensions" yaml:"exclude_extensions"`
	ExcludeHidden     bool     `json:"exclude_hidden" yaml:"exclude_hidden"`
}

// Default returns a RuntimeConfig populated entirely with documented
// defaults, with no file or environment overlay applied.
func Default() RuntimeConfig {
	return RuntimeConfig{
		MaxIterations:                     DefaultMaxIterations,
		TimeoutSeconds:                    DefaultTimeoutSeconds,
		MaxRetries:                        DefaultMaxRetries,
		MaxTokens:                         DefaultMaxTokens,
		MaxHistory:                        DefaultMaxHistory,
		RequestIntervalSeconds:            DefaultRequestIntervalSeconds,
		EnableDangerousCommandValidation:  DefaultEnableDangerousCmdValidate,
		DefaultMode:                       DefaultMode,
		EnableTaskClassification:          DefaultEnableTaskClassification,
		CheckpointInterval:                DefaultCheckpointInterval,
		SearchFiltering: SearchFilteringConfig{
			ExcludeDirs:       []string{".git", "node_modules", "vendor", "dist", "build"},
			ExcludeExtensions: []string{".lock", ".min.js"},
			ExcludeHidden:     true,
		},
		ExtensionsDir:        DefaultExtensionsDir,
		LLMProvider:          DefaultLLMProvider,
		ToolSchemaValidation: DefaultToolSchemaValidate,
		CheckpointBackend:    DefaultCheckpointBackend,
		Temperature:          0.7,
	}
}

// RequestInterval returns RequestIntervalSeconds as a time.Duration.
func (c RuntimeConfig) RequestInterval() time.Duration {
	return time.Duration(c.RequestIntervalSeconds) * time.Second
}

// Timeout returns TimeoutSeconds as a time.Duration.
func (c RuntimeConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}
