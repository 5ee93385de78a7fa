// Package config loads and validates the landseer configuration.
//
// Configuration is read once at process start from .landseer.yaml (or the
// file given with --config), with LANDSEER_* environment variables layered
// on top. The resulting Config value is read-mostly and shared by every
// component; the heuristic regex table is compiled here, once.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/landseer/landseer/internal/urlnorm"
)

// Chrome user agent for better compatibility with picky origins.
const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// LLMConfig configures the relevance gate.
type LLMConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Provider string        `mapstructure:"provider" validate:"omitempty,oneof=openai openrouter anthropic"`
	APIKey   string        `mapstructure:"api_key"`
	BaseURL  string        `mapstructure:"base_url" validate:"omitempty,url"`
	Model    string        `mapstructure:"model"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// SerpConfig configures search-provider seed ingestion.
type SerpConfig struct {
	Provider string `mapstructure:"provider" validate:"omitempty,oneof=serpapi bing duckduckgo"`
	APIKey   string `mapstructure:"api_key"`
	BaseURL  string `mapstructure:"base_url" validate:"omitempty,url"`
}

// DynamicMediaConfig configures the optional headless-browser media pass.
type DynamicMediaConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// Config is the process-wide configuration.
type Config struct {
	UserAgent           string            `mapstructure:"user_agent" validate:"required"`
	ParallelConnections int               `mapstructure:"parallel_connections" validate:"min=1"`
	DefaultTimeout      time.Duration     `mapstructure:"default_timeout" validate:"min=1s"`
	DataLocation        string            `mapstructure:"data_location" validate:"required"`
	Archive             bool              `mapstructure:"archive"`
	Heuristics          map[string]string `mapstructure:"heuristics"`
	CleanExtractorCmd   string            `mapstructure:"clean_extractor"`
	DynamicMedia        DynamicMediaConfig `mapstructure:"dynamic_media"`
	LLM                 LLMConfig         `mapstructure:"llm"`
	Serp                SerpConfig        `mapstructure:"serp"`

	// Compiled from Heuristics at load time.
	HeuristicTable *urlnorm.Heuristics `mapstructure:"-"`
}

// SetDefaults registers default values on a viper instance.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("user_agent", defaultUserAgent)
	v.SetDefault("parallel_connections", 10)
	v.SetDefault("default_timeout", 15*time.Second)
	v.SetDefault("data_location", "data")
	v.SetDefault("archive", false)
	v.SetDefault("clean_extractor", "")
	v.SetDefault("dynamic_media.enabled", false)
	v.SetDefault("dynamic_media.timeout", 30*time.Second)
	v.SetDefault("llm.enabled", false)
	v.SetDefault("llm.provider", "openrouter")
	v.SetDefault("llm.timeout", 30*time.Second)
	v.SetDefault("serp.provider", "serpapi")
}

// Load decodes, validates and compiles the configuration held by v.
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	validate := validator.New()
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	table, err := urlnorm.CompileHeuristics(cfg.Heuristics)
	if err != nil {
		return nil, fmt.Errorf("invalid heuristics: %w", err)
	}
	cfg.HeuristicTable = table

	return &cfg, nil
}
