package config

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger LoggerConfig `mapstructure:"logger" yaml:"logger"`
	Runner RunnerConfig `mapstructure:"runner" yaml:"runner"`
	Healer HealerConfig `mapstructure:"healer" yaml:"healer"`
	Agent  AgentConfig  `mapstructure:"agent" yaml:"agent"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the console color names for each log level.
type ColorConfig struct {
	Debug string `mapstructure:"debug" yaml:"debug"`
	Info  string `mapstructure:"info" yaml:"info"`
	Warn  string `mapstructure:"warn" yaml:"warn"`
	Error string `mapstructure:"error" yaml:"error"`
	Fatal string `mapstructure:"fatal" yaml:"fatal"`
}

// RunnerConfig configures how the external test runner is invoked.
type RunnerConfig struct {
	// Command is the runner executable and its leading arguments; the test
	// file path is appended per invocation.
	Command []string `mapstructure:"command" yaml:"command"`
	// Timeout bounds one test run. Exceeding it synthesizes the timeout
	// sentinel exit code instead of failing the pipeline.
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
	// ResultsDir is scanned after a run for the freshest failure screenshot.
	ResultsDir string `mapstructure:"results_dir" yaml:"results_dir"`
	// WorkDir is the working directory for the runner process. Empty means
	// the current directory.
	WorkDir string `mapstructure:"work_dir" yaml:"work_dir"`
}

// HealerConfig configures the healing orchestrator.
type HealerConfig struct {
	// MaxAttempts is the hard bound on healing attempts per invocation.
	MaxAttempts int `mapstructure:"max_attempts" yaml:"max_attempts"`
	// ArtifactsDir receives one decision and one timeline JSON per attempt.
	ArtifactsDir string `mapstructure:"artifacts_dir" yaml:"artifacts_dir"`
	// SimilarityThreshold is the acceptance bar for the fuzzy patch match.
	SimilarityThreshold float64 `mapstructure:"similarity_threshold" yaml:"similarity_threshold"`
}

// AgentConfig holds settings related to the AI diagnosis components.
type AgentConfig struct {
	LLM LLMModelConfig `mapstructure:"llm" yaml:"llm"`
}

// LLMProvider defines the supported model backends.
type LLMProvider string

const (
	ProviderGemini LLMProvider = "gemini"
)

// LLMModelConfig defines the configuration for a single model.
type LLMModelConfig struct {
	Provider      LLMProvider       `mapstructure:"provider" yaml:"provider"`
	Model         string            `mapstructure:"model" yaml:"model"`
	APIKey        string            `mapstructure:"api_key" yaml:"-"`
	APITimeout    time.Duration     `mapstructure:"api_timeout" yaml:"api_timeout"`
	Temperature   float64           `mapstructure:"temperature" yaml:"temperature"`
	TopP          float32           `mapstructure:"top_p" yaml:"top_p"`
	TopK          int               `mapstructure:"top_k" yaml:"top_k"`
	MaxTokens     int               `mapstructure:"max_tokens" yaml:"max_tokens"`
	SafetyFilters map[string]string `mapstructure:"safety_filters" yaml:"safety_filters"`
}

// global stores the process-wide configuration set by the root command.
var global atomic.Pointer[Config]

// Get returns the process-wide configuration, falling back to defaults if
// Set has not been called yet (tests, library use).
func Get() *Config {
	if cfg := global.Load(); cfg != nil {
		return cfg
	}
	return NewDefaultConfig()
}

// Set installs the process-wide configuration.
func Set(cfg *Config) {
	global.Store(cfg)
}

// NewDefaultConfig creates a configuration populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// Defaults are static; failing to unmarshal them is a programming error.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "suture-cli")
	v.SetDefault("logger.log_file", "suture.log")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Runner --
	v.SetDefault("runner.command", []string{"npx", "playwright", "test"})
	v.SetDefault("runner.timeout", "60s")
	v.SetDefault("runner.results_dir", "test-results")
	v.SetDefault("runner.work_dir", "")

	// -- Healer --
	v.SetDefault("healer.max_attempts", 2)
	v.SetDefault("healer.artifacts_dir", "artifacts")
	v.SetDefault("healer.similarity_threshold", 0.80)

	// -- Agent --
	v.SetDefault("agent.llm.provider", "gemini")
	v.SetDefault("agent.llm.model", "gemini-2.5-pro")
	v.SetDefault("agent.llm.api_timeout", "2m")
	v.SetDefault("agent.llm.temperature", 0.1)
	v.SetDefault("agent.llm.top_p", 0.95)
	v.SetDefault("agent.llm.top_k", 40)
	v.SetDefault("agent.llm.max_tokens", 8192)
}

// NewConfigFromViper creates a validated configuration from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	// The API key never lives in the config file.
	_ = v.BindEnv("agent.llm.api_key", "SUTURE_GEMINI_API_KEY", "GEMINI_API_KEY")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if len(c.Runner.Command) == 0 {
		return fmt.Errorf("runner.command must not be empty")
	}
	if c.Runner.Timeout <= 0 {
		return fmt.Errorf("runner.timeout must be a positive duration")
	}
	if c.Healer.MaxAttempts < 1 {
		return fmt.Errorf("healer.max_attempts must be at least 1")
	}
	if c.Healer.ArtifactsDir == "" {
		return fmt.Errorf("healer.artifacts_dir must not be empty")
	}
	if c.Healer.SimilarityThreshold <= 0.0 || c.Healer.SimilarityThreshold > 1.0 {
		return fmt.Errorf("healer.similarity_threshold must be in (0.0, 1.0]")
	}
	if strings.TrimSpace(string(c.Agent.LLM.Provider)) == "" {
		return fmt.Errorf("agent.llm.provider must not be empty")
	}
	return nil
}
