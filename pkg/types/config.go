package types

import "time"

// BackendConfig holds settings for the inference runner.
type BackendConfig struct {
	// Mode is the requested backend: hosted, local-daemon, or offline.
	// Empty lets the runner choose from credential presence.
	Mode string `json:"mode" yaml:"mode" validate:"omitempty,oneof=hosted local-daemon offline"`

	// Model is the default model identifier (e.g. "gpt-4o-mini").
	Model string `json:"model" yaml:"model" validate:"required"`

	// MaxTokens bounds reply length.
	MaxTokens int `json:"max_tokens" yaml:"max_tokens" validate:"gte=1"`

	// Credential is the API key for the hosted backend. Usually supplied
	// through the environment or .secrets/ rather than the config file.
	Credential string `json:"credential,omitempty" yaml:"credential,omitempty"`

	// HostedBaseURL overrides the hosted API endpoint. Empty uses the
	// provider default.
	HostedBaseURL string `json:"hosted_base_url,omitempty" yaml:"hosted_base_url,omitempty" validate:"omitempty,url"`

	// DaemonURL is the base URL of the local inference daemon.
	DaemonURL string `json:"daemon_url" yaml:"daemon_url" validate:"required,url"`

	// Timeout applies to each backend call.
	Timeout time.Duration `json:"timeout" yaml:"timeout" validate:"gt=0"`

	// Breaker enables the circuit breaker around hosted calls.
	Breaker BreakerConfig `json:"breaker" yaml:"breaker"`
}

// BreakerConfig holds circuit-breaker settings for the hosted backend.
type BreakerConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`

	// ConsecutiveFailures trips the breaker after this many recoverable
	// failures in a row.
	ConsecutiveFailures uint32 `json:"consecutive_failures" yaml:"consecutive_failures" validate:"gte=1"`

	// OpenTimeout is how long the breaker stays open before probing again.
	OpenTimeout time.Duration `json:"open_timeout" yaml:"open_timeout" validate:"gt=0"`
}

// ReportConfig holds settings for the report stage.
type ReportConfig struct {
	// Template is the path to a Markdown template. Empty uses the built-in layout.
	Template string `json:"template" yaml:"template"`

	// Out is the report destination (default "outputs/final_report.md").
	Out string `json:"out" yaml:"out" validate:"required"`

	// Meta is the sidecar metadata destination (default "outputs/final_report.json").
	Meta string `json:"meta" yaml:"meta" validate:"required"`

	// TopN bounds the number of topics listed (default 10).
	TopN int `json:"top_n" yaml:"top_n" validate:"gte=1"`

	// UseLLM requests a model-written synthesis section.
	UseLLM bool `json:"use_llm" yaml:"use_llm"`

	// MaxLLMTokens bounds the synthesis reply.
	MaxLLMTokens int `json:"max_llm_tokens" yaml:"max_llm_tokens" validate:"gte=1"`
}

// ExtractConfig holds settings for the extraction stage.
type ExtractConfig struct {
	// Out is the evidence corpus destination (default "outputs/structured_evidence.json").
	Out string `json:"out" yaml:"out" validate:"required"`

	// DefaultSource tags records whose input carries no provenance.
	DefaultSource string `json:"default_source" yaml:"default_source"`
}

// CacheConfig selects the synthesis reply cache.
type CacheConfig struct {
	// RedisURL enables the Redis cache (e.g. "redis://localhost:6379/0").
	// Empty disables caching.
	RedisURL string `json:"redis_url,omitempty" yaml:"redis_url,omitempty"`

	// TTL is how long cached replies live.
	TTL time.Duration `json:"ttl" yaml:"ttl" validate:"gte=0"`
}

// KnowledgeConfig holds settings for the evidence archive.
type KnowledgeConfig struct {
	// DBPath is the SQLite database file (default "knowledge/evidence.db").
	DBPath string `json:"db_path" yaml:"db_path" validate:"required"`

	// MaxResults is the default search limit (default 20).
	MaxResults int `json:"max_results" yaml:"max_results" validate:"gte=1"`
}

// Config groups all settings for the evidence-engine CLI.
type Config struct {
	LogLevel  string          `json:"log_level" yaml:"log_level" validate:"omitempty,oneof=debug info warn error"`
	Backend   BackendConfig   `json:"backend" yaml:"backend"`
	Extract   ExtractConfig   `json:"extract" yaml:"extract"`
	Report    ReportConfig    `json:"report" yaml:"report"`
	Cache     CacheConfig     `json:"cache" yaml:"cache"`
	Knowledge KnowledgeConfig `json:"knowledge" yaml:"knowledge"`
}
