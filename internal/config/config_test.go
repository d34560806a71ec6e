package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv(configPathEnv, "")
	t.Setenv(openAIKeyEnv, "")
	t.Setenv(providerEnv, "")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.Scheduler.PollInterval != 5*time.Second {
		t.Errorf("expected poll interval 5s, got %v", cfg.Scheduler.PollInterval)
	}
	if cfg.Scheduler.Concurrency != 2 {
		t.Errorf("expected concurrency 2, got %d", cfg.Scheduler.Concurrency)
	}
	if cfg.Sweeper.MaxAge != 24*time.Hour {
		t.Errorf("expected max age 24h, got %v", cfg.Sweeper.MaxAge)
	}
	if cfg.Summarizer.Provider != ProviderLocal {
		t.Errorf("expected local provider, got %s", cfg.Summarizer.Provider)
	}
}

func TestLoad_FileAndEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
scheduler:
  pollInterval: 2s
  concurrency: 4
sweeper:
  maxAge: 12h
renderer:
  handwritingUrl: http://render.local/api
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	t.Setenv(concurrencyEnv, "3")
	t.Setenv(openAIKeyEnv, "sk-test")
	t.Setenv(providerEnv, "")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.Scheduler.PollInterval != 2*time.Second {
		t.Errorf("expected poll interval 2s, got %v", cfg.Scheduler.PollInterval)
	}
	if cfg.Scheduler.Concurrency != 3 {
		t.Errorf("expected env to override concurrency to 3, got %d", cfg.Scheduler.Concurrency)
	}
	if cfg.Sweeper.MaxAge != 12*time.Hour {
		t.Errorf("expected max age 12h, got %v", cfg.Sweeper.MaxAge)
	}
	if cfg.Sweeper.Schedule != "@every 1h" {
		t.Errorf("expected default schedule to survive, got %q", cfg.Sweeper.Schedule)
	}
	if cfg.Renderer.HandwritingURL != "http://render.local/api" {
		t.Errorf("unexpected handwriting url %q", cfg.Renderer.HandwritingURL)
	}
	if cfg.Summarizer.Provider != ProviderOpenAI {
		t.Errorf("expected api key to select openai provider, got %s", cfg.Summarizer.Provider)
	}
}

func TestLoad_InvalidEnv(t *testing.T) {
	t.Setenv(configPathEnv, "")
	t.Setenv(pollIntervalEnv, "soon")

	if _, err := Load(""); err == nil {
		t.Error("expected error for invalid duration")
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Scheduler.Concurrency = 0
	cfg.Summarizer.Provider = ProviderVertex

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "concurrency") || !strings.Contains(err.Error(), "vertexProject") {
		t.Errorf("expected both problems reported, got %v", err)
	}
}
