package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	configPathEnv      = "NOTES_CONFIG"
	httpPortEnv        = "NOTES_HTTP_PORT"
	databasePathEnv    = "NOTES_DB"
	concurrencyEnv     = "NOTES_CONCURRENCY"
	pollIntervalEnv    = "NOTES_POLL_INTERVAL"
	stageTimeoutEnv    = "NOTES_STAGE_TIMEOUT"
	providerEnv        = "SUMMARIZER_PROVIDER"
	openAIKeyEnv       = "OPENAI_API_KEY"
	openAIModelEnv     = "OPENAI_MODEL"
	openAIBaseURLEnv   = "OPENAI_BASE_URL"
	vertexProjectEnv   = "VERTEX_PROJECT"
	vertexRegionEnv    = "VERTEX_REGION"
	handwritingURLEnv  = "HANDWRITING_URL"
	logLevelEnv        = "LOG_LEVEL"
	defaultOpenAIModel = "gpt-4o-mini"
)

// Summarizer providers.
const (
	ProviderLocal  = "local"
	ProviderOpenAI = "openai"
	ProviderVertex = "vertex"
)

// Config holds settings for the whole service.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
	Sweeper    SweeperConfig    `yaml:"sweeper"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Summarizer SummarizerConfig `yaml:"summarizer"`
	Renderer   RendererConfig   `yaml:"renderer"`
	Limits     LimitsConfig     `yaml:"limits"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Port            string        `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// DatabaseConfig points at the SQLite file holding rendered artifacts.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// SchedulerConfig controls how queued jobs are picked up.
type SchedulerConfig struct {
	PollInterval time.Duration `yaml:"pollInterval"`
	Concurrency  int           `yaml:"concurrency"`
}

// SweeperConfig controls eviction of old jobs.
type SweeperConfig struct {
	Schedule string        `yaml:"schedule"`
	MaxAge   time.Duration `yaml:"maxAge"`
}

// PipelineConfig holds per-job execution settings.
type PipelineConfig struct {
	StageTimeout  time.Duration `yaml:"stageTimeout"`
	DefaultLength string        `yaml:"defaultLength"`
	DefaultStyle  string        `yaml:"defaultStyle"`
}

// SummarizerConfig selects and configures the summarization backend.
type SummarizerConfig struct {
	Provider      string        `yaml:"provider"`
	BaseURL       string        `yaml:"baseUrl"`
	Model         string        `yaml:"model"`
	APIKey        string        `yaml:"apiKey"`
	Temperature   float64       `yaml:"temperature"`
	Timeout       time.Duration `yaml:"timeout"`
	VertexProject string        `yaml:"vertexProject"`
	VertexRegion  string        `yaml:"vertexRegion"`
}

// RendererConfig configures the primary handwriting service.
type RendererConfig struct {
	HandwritingURL string        `yaml:"handwritingUrl"`
	Timeout        time.Duration `yaml:"timeout"`
}

// LimitsConfig bounds what a single client may submit.
type LimitsConfig struct {
	SubmissionsPerMinute int   `yaml:"submissionsPerMinute"`
	Burst                int   `yaml:"burst"`
	MaxUploadBytes       int64 `yaml:"maxUploadBytes"`
}

// LoggingConfig sets the log level.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:            "8080",
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{Path: "notes.db"},
		Scheduler: SchedulerConfig{
			PollInterval: 5 * time.Second,
			Concurrency:  2,
		},
		Sweeper: SweeperConfig{
			Schedule: "@every 1h",
			MaxAge:   24 * time.Hour,
		},
		Pipeline: PipelineConfig{
			StageTimeout:  2 * time.Minute,
			DefaultLength: "medium",
			DefaultStyle:  "notes",
		},
		Summarizer: SummarizerConfig{
			Provider:    ProviderLocal,
			BaseURL:     "https://api.openai.com/v1",
			Model:       defaultOpenAIModel,
			Temperature: 0.3,
			Timeout:     60 * time.Second,
		},
		Renderer: RendererConfig{
			Timeout: 30 * time.Second,
		},
		Limits: LimitsConfig{
			SubmissionsPerMinute: 10,
			Burst:                5,
			MaxUploadBytes:       20 << 20,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load builds the configuration from defaults, the YAML file at path (or
// $NOTES_CONFIG when path is empty), and environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(configPathEnv)
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return Config{}, err
	}

	// an API key alone is enough to opt into the hosted summarizer
	if cfg.Summarizer.Provider == ProviderLocal && cfg.Summarizer.APIKey != "" && os.Getenv(providerEnv) == "" {
		cfg.Summarizer.Provider = ProviderOpenAI
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() error {
	setString(&c.Server.Port, httpPortEnv)
	setString(&c.Database.Path, databasePathEnv)
	setString(&c.Summarizer.Provider, providerEnv)
	setString(&c.Summarizer.APIKey, openAIKeyEnv)
	setString(&c.Summarizer.Model, openAIModelEnv)
	setString(&c.Summarizer.BaseURL, openAIBaseURLEnv)
	setString(&c.Summarizer.VertexProject, vertexProjectEnv)
	setString(&c.Summarizer.VertexRegion, vertexRegionEnv)
	setString(&c.Renderer.HandwritingURL, handwritingURLEnv)
	setString(&c.Logging.Level, logLevelEnv)

	if v := os.Getenv(concurrencyEnv); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: %s: %w", concurrencyEnv, err)
		}
		c.Scheduler.Concurrency = n
	}
	if err := setDuration(&c.Scheduler.PollInterval, pollIntervalEnv); err != nil {
		return err
	}
	return setDuration(&c.Pipeline.StageTimeout, stageTimeoutEnv)
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	var problems []string

	if c.Scheduler.Concurrency < 1 {
		problems = append(problems, "scheduler.concurrency must be at least 1")
	}
	if c.Scheduler.PollInterval <= 0 {
		problems = append(problems, "scheduler.pollInterval must be positive")
	}
	if c.Sweeper.MaxAge <= 0 {
		problems = append(problems, "sweeper.maxAge must be positive")
	}
	if strings.TrimSpace(c.Sweeper.Schedule) == "" {
		problems = append(problems, "sweeper.schedule is required")
	}
	if c.Pipeline.StageTimeout <= 0 {
		problems = append(problems, "pipeline.stageTimeout must be positive")
	}
	switch c.Summarizer.Provider {
	case ProviderLocal:
	case ProviderOpenAI:
		if c.Summarizer.APIKey == "" {
			problems = append(problems, "summarizer.apiKey is required for the openai provider")
		}
	case ProviderVertex:
		if c.Summarizer.VertexProject == "" || c.Summarizer.VertexRegion == "" {
			problems = append(problems, "summarizer.vertexProject and vertexRegion are required for the vertex provider")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown summarizer.provider %q", c.Summarizer.Provider))
	}
	if c.Limits.SubmissionsPerMinute < 1 || c.Limits.Burst < 1 {
		problems = append(problems, "limits.submissionsPerMinute and limits.burst must be at least 1")
	}

	if len(problems) > 0 {
		return fmt.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

func setString(dst *string, env string) {
	if v := os.Getenv(env); v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, env string) error {
	v := os.Getenv(env)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("config: %s: %w", env, err)
	}
	*dst = d
	return nil
}
