package model

// Config is the complete runtime configuration. Values are business tuning
// knobs, not structural requirements, so everything here is overridable via
// config file, CLAIMFLOW_* environment variables or flags.
type Config struct {
	LLM         LLMConfig         `yaml:"llm" mapstructure:"llm"`
	Retry       RetryConfig       `yaml:"retry" mapstructure:"retry"`
	Fraud       FraudConfig       `yaml:"fraud" mapstructure:"fraud"`
	Concurrency ConcurrencyConfig `yaml:"concurrency" mapstructure:"concurrency"`
	Cache       CacheConfig       `yaml:"cache" mapstructure:"cache"`
	Watch       WatchConfig       `yaml:"watch" mapstructure:"watch"`
}

// LLMConfig configures the text-generation provider
type LLMConfig struct {
	Provider  string `yaml:"provider" mapstructure:"provider"` // openai, anthropic, ollama, "" (mock/disabled)
	Model     string `yaml:"model" mapstructure:"model"`
	APIKey    string `yaml:"api_key" mapstructure:"api_key"`
	BaseURL   string `yaml:"base_url" mapstructure:"base_url"`
	Timeout   int    `yaml:"timeout" mapstructure:"timeout"` // seconds
	MaxTokens int    `yaml:"max_tokens" mapstructure:"max_tokens"`

	// Proxy settings
	HTTPProxy  string `yaml:"http_proxy" mapstructure:"http_proxy"`
	HTTPSProxy string `yaml:"https_proxy" mapstructure:"https_proxy"`
	NoProxy    string `yaml:"no_proxy" mapstructure:"no_proxy"`

	// Rate limiting toward the provider
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	Burst             int     `yaml:"burst" mapstructure:"burst"`
}

// RetryConfig bounds re-invocation of collaborators whose output failed to parse
type RetryConfig struct {
	ExtraAttempts int `yaml:"extra_attempts" mapstructure:"extra_attempts"` // retries after the first try
	BackoffMillis int `yaml:"backoff_millis" mapstructure:"backoff_millis"`
}

// FraudConfig holds fraud-assessment tuning values
type FraudConfig struct {
	ReviewThreshold   float64 `yaml:"review_threshold" mapstructure:"review_threshold"`     // score at or above parks the claim for human review
	SimilarityMatches int     `yaml:"similarity_matches" mapstructure:"similarity_matches"` // patterns requested from the similarity index
}

// ConcurrencyConfig bounds parallelism for batch submission
type ConcurrencyConfig struct {
	BatchWorkers int `yaml:"batch_workers" mapstructure:"batch_workers"`
}

// CacheConfig configures the provider response cache
type CacheConfig struct {
	Enabled    bool   `yaml:"enabled" mapstructure:"enabled"`
	Dir        string `yaml:"dir" mapstructure:"dir"` // disk layer; empty = memory only
	TTLMinutes int    `yaml:"ttl_minutes" mapstructure:"ttl_minutes"`
}

// WatchConfig configures the intake-directory watcher
type WatchConfig struct {
	Dir            string `yaml:"dir" mapstructure:"dir"`
	SettleMillis   int    `yaml:"settle_millis" mapstructure:"settle_millis"` // wait for writes to finish
	DeleteIngested bool   `yaml:"delete_ingested" mapstructure:"delete_ingested"`
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:          "",
			Timeout:           30,
			MaxTokens:         1000,
			RequestsPerSecond: 2,
			Burst:             4,
		},
		Retry: RetryConfig{
			ExtraAttempts: 2,
			BackoffMillis: 500,
		},
		Fraud: FraudConfig{
			ReviewThreshold:   0.7,
			SimilarityMatches: 5,
		},
		Concurrency: ConcurrencyConfig{
			BatchWorkers: 4,
		},
		Cache: CacheConfig{
			Enabled:    true,
			TTLMinutes: 60,
		},
		Watch: WatchConfig{
			SettleMillis: 200,
		},
	}
}
