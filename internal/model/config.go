package model

import (
	"os"
	"path/filepath"
	"time"
)

// Config is the complete veritas configuration
type Config struct {
	Verification VerificationConfig `yaml:"verification" mapstructure:"verification"`
	Sources      SourcesConfig      `yaml:"sources" mapstructure:"sources"`
	Knowledge    KnowledgeConfig    `yaml:"knowledge" mapstructure:"knowledge"`
	Authority    AuthorityConfig    `yaml:"authority" mapstructure:"authority"`
	Cache        CacheConfig        `yaml:"cache" mapstructure:"cache"`
	HTTP         HTTPConfig         `yaml:"http" mapstructure:"http"`
	LLM          LLMConfig          `yaml:"llm" mapstructure:"llm"`
	Concurrency  ConcurrencyConfig  `yaml:"concurrency" mapstructure:"concurrency"`
	RateLimiting RateLimitConfig    `yaml:"rate_limiting" mapstructure:"rate_limiting"`
	Logging      LoggingConfig      `yaml:"logging" mapstructure:"logging"`
	Output       OutputConfig       `yaml:"output" mapstructure:"output"`
}

// VerificationConfig controls the fact verifier
type VerificationConfig struct {
	Domain       string        `yaml:"domain" mapstructure:"domain"`               // healthcare, financial, legal, insurance or empty
	StrictMode   bool          `yaml:"strict_mode" mapstructure:"strict_mode"`     // Raise the verified threshold from 60 to 80
	ClaimWorkers int           `yaml:"claim_workers" mapstructure:"claim_workers"` // Concurrent claims per document
	QueryTimeout time.Duration `yaml:"query_timeout" mapstructure:"query_timeout"` // Per-adapter timeout
	MaxResults   int           `yaml:"max_results" mapstructure:"max_results"`     // Results requested from each adapter
}

// SourcesConfig controls the external knowledge sources
type SourcesConfig struct {
	FallbackEnabled bool          `yaml:"fallback_enabled" mapstructure:"fallback_enabled"`
	MaxParallel     int           `yaml:"max_parallel" mapstructure:"max_parallel"` // Concurrent adapter queries
	Wikipedia       AdapterConfig `yaml:"wikipedia" mapstructure:"wikipedia"`
	OpenAlex        AdapterConfig `yaml:"openalex" mapstructure:"openalex"`
	LLM             AdapterConfig `yaml:"llm" mapstructure:"llm"`
}

// AdapterConfig configures one external adapter and its reliability.
// A nil Weight derives the base weight from Reliability/100.
type AdapterConfig struct {
	Enabled       bool               `yaml:"enabled" mapstructure:"enabled"`
	BaseURL       string             `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Reliability   int                `yaml:"reliability" mapstructure:"reliability"`
	Weight        *float64           `yaml:"weight,omitempty" mapstructure:"weight"`
	DomainWeights map[string]float64 `yaml:"domain_weights,omitempty" mapstructure:"domain_weights"`
	Email         string             `yaml:"email,omitempty" mapstructure:"email"` // OpenAlex polite pool
	Cache         bool               `yaml:"cache" mapstructure:"cache"`           // Wrap the adapter in the result cache

	// RevisionCheck enables the Wikipedia edit-war lookup on the top hit
	RevisionCheck bool `yaml:"revision_check,omitempty" mapstructure:"revision_check"`
}

// KnowledgeConfig controls the internal knowledge store
type KnowledgeConfig struct {
	Path     string `yaml:"path" mapstructure:"path"`           // SQLite database path
	SeedFile string `yaml:"seed_file" mapstructure:"seed_file"` // Optional YAML seed imported on open
}

// AuthorityConfig extends the built-in per-vertical authority allowlists
type AuthorityConfig struct {
	Verticals map[string][]string `yaml:"verticals,omitempty" mapstructure:"verticals"`
}

// CacheConfig controls adapter result caching
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir       string        `yaml:"dir" mapstructure:"dir"`
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
	DiskTTL   time.Duration `yaml:"disk_ttl" mapstructure:"disk_ttl"`
}

// HTTPConfig holds shared HTTP settings
type HTTPConfig struct {
	Timeout       time.Duration `yaml:"timeout" mapstructure:"timeout"`
	UserAgent     string        `yaml:"user_agent" mapstructure:"user_agent"`
	MaxBodyBytes  int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	InsecureTLS   bool          `yaml:"insecure_tls" mapstructure:"insecure_tls"`
	HTTPProxy     string        `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy    string        `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	NoProxy       string        `yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`
	RespectRobots bool          `yaml:"respect_robots" mapstructure:"respect_robots"`
}

// LLMConfig configures the model-as-judge provider
type LLMConfig struct {
	Provider  string `yaml:"provider" mapstructure:"provider"` // openai, ollama or empty
	Model     string `yaml:"model" mapstructure:"model"`
	APIKey    string `yaml:"api_key,omitempty" mapstructure:"api_key"`
	BaseURL   string `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout   int    `yaml:"timeout" mapstructure:"timeout"` // seconds
	MaxTokens int    `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// ConcurrencyConfig controls batch processing
type ConcurrencyConfig struct {
	Workers           int `yaml:"workers" mapstructure:"workers"`                       // Documents checked in parallel
	ValidationWorkers int `yaml:"validation_workers" mapstructure:"validation_workers"` // Link checks in parallel
}

// RateLimitConfig throttles outbound requests per host
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	BurstSize         int     `yaml:"burst_size" mapstructure:"burst_size"`
}

// LoggingConfig controls structured logging
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`   // debug, info, warn, error
	Format string `yaml:"format" mapstructure:"format"` // json or console
}

// OutputConfig controls report rendering
type OutputConfig struct {
	Verbose       bool `yaml:"verbose" mapstructure:"verbose"`
	IncludeFooter bool `yaml:"include_footer" mapstructure:"include_footer"`
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		Verification: VerificationConfig{
			ClaimWorkers: 4,
			QueryTimeout: DefaultQueryTimeout,
			MaxResults:   3,
		},
		Sources: SourcesConfig{
			FallbackEnabled: true,
			MaxParallel:     4,
			Wikipedia: AdapterConfig{
				Enabled:       true,
				BaseURL:       "https://en.wikipedia.org",
				Reliability:   80,
				Cache:         true,
				RevisionCheck: true,
			},
			OpenAlex: AdapterConfig{
				Enabled:     true,
				BaseURL:     "https://api.openalex.org",
				Reliability: 85,
				Cache:       true,
			},
			LLM: AdapterConfig{
				Enabled:     false,
				Reliability: 50,
			},
		},
		Knowledge: KnowledgeConfig{
			Path: filepath.Join(defaultDataDir(), "knowledge.db"),
		},
		Cache: CacheConfig{
			Enabled:   true,
			Dir:       filepath.Join(defaultDataDir(), "cache"),
			MemoryTTL: 30 * time.Minute,
			DiskTTL:   24 * time.Hour,
		},
		HTTP: HTTPConfig{
			Timeout:       15 * time.Second,
			UserAgent:     "Veritas/0.1 (+https://github.com/ppiankov/veritas)",
			MaxBodyBytes:  2_000_000,
			RespectRobots: true,
		},
		LLM: LLMConfig{
			Timeout:   30,
			MaxTokens: 500,
		},
		Concurrency: ConcurrencyConfig{
			Workers:           4,
			ValidationWorkers: 20,
		},
		RateLimiting: RateLimitConfig{
			RequestsPerSecond: 5,
			BurstSize:         5,
		},
		Logging: LoggingConfig{
			Level:  "warn",
			Format: "console",
		},
		Output: OutputConfig{
			IncludeFooter: true,
		},
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".veritas"
	}
	return filepath.Join(home, ".veritas")
}
