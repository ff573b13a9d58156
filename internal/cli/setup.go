package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/covassure/claimflow/internal/cache"
	"github.com/covassure/claimflow/internal/llm"
	"github.com/covassure/claimflow/internal/model"
	"github.com/covassure/claimflow/internal/worker"
)

// loadConfig merges config file and environment over the defaults
func loadConfig() (*model.Config, error) {
	cfg := model.DefaultConfig()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse configuration: %w", err)
	}

	// API keys come from the provider's conventional env var when not set
	if cfg.LLM.APIKey == "" {
		switch cfg.LLM.Provider {
		case "openai":
			cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
		case "anthropic", "claude":
			cfg.LLM.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		case "ollama":
			if base := os.Getenv("OLLAMA_BASE_URL"); base != "" && cfg.LLM.BaseURL == "" {
				cfg.LLM.BaseURL = base
			}
		}
	}
	return cfg, nil
}

// newLogger builds the CLI logger: debug-level console output when verbose,
// warnings and up otherwise
func newLogger() (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	return zcfg.Build()
}

// buildProvider constructs the configured text-generation provider wrapped
// with response caching and rate limiting
func buildProvider(cfg *model.Config) (llm.Provider, error) {
	provider, err := llm.NewProvider(llm.ConfigFromModel(cfg.LLM))
	if err != nil {
		return nil, err
	}
	if provider == nil {
		return nil, fmt.Errorf("no text-generation provider configured; set llm.provider in the config or CLAIMFLOW_LLM_PROVIDER")
	}

	if cfg.Cache.Enabled {
		ttl := time.Duration(cfg.Cache.TTLMinutes) * time.Minute
		var c cache.Cache
		if cfg.Cache.Dir != "" {
			c = cache.NewLayeredCache(ttl, cfg.Cache.Dir, ttl)
		} else {
			c = cache.NewMemoryCache(ttl, 2*ttl)
		}
		provider = llm.NewCachingProvider(provider, c, ttl)
	}

	if cfg.LLM.RequestsPerSecond > 0 {
		provider = llm.NewLimitedProvider(provider, worker.NewLimiter(cfg.LLM.RequestsPerSecond, cfg.LLM.Burst))
	}
	return provider, nil
}
