package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv(configPathEnv, "")

	cfg := Load()

	if cfg.Feed.BaseURL != "https://www.nseindia.com" {
		t.Fatalf("unexpected base URL: %s", cfg.Feed.BaseURL)
	}
	if len(cfg.Feed.Strategies) != 2 || cfg.Feed.Strategies[0] != "nse-api" {
		t.Fatalf("unexpected strategy order: %v", cfg.Feed.Strategies)
	}
	if cfg.WhatsApp.Template != "stockupdate" || cfg.WhatsApp.APIVersion != "v22.0" {
		t.Fatalf("unexpected whatsapp defaults: %+v", cfg.WhatsApp)
	}
	if cfg.Scheduler.Location().String() != "Asia/Kolkata" {
		t.Fatalf("unexpected timezone: %s", cfg.Scheduler.Location())
	}
	if cfg.Scheduler.IntervalDuration() != time.Hour {
		t.Fatalf("unexpected interval: %s", cfg.Scheduler.IntervalDuration())
	}
}

func TestLoadMergesYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
scheduler:
  interval: 30m
  timezone: UTC
feed:
  index: debt
  quotes: true
pipeline:
  concurrency: 8
logging:
  level: debug
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(configPathEnv, path)

	cfg := Load()

	if cfg.Scheduler.IntervalDuration() != 30*time.Minute {
		t.Fatalf("interval not merged: %s", cfg.Scheduler.Interval)
	}
	if cfg.Scheduler.Location().String() != "UTC" {
		t.Fatalf("timezone not merged: %s", cfg.Scheduler.Location())
	}
	if cfg.Feed.Index != "debt" || !cfg.Feed.Quotes {
		t.Fatalf("feed overrides not merged: %+v", cfg.Feed)
	}
	if cfg.Pipeline.Concurrency != 8 {
		t.Fatalf("concurrency not merged: %d", cfg.Pipeline.Concurrency)
	}
	// Untouched sections keep their defaults.
	if cfg.Feed.BaseURL != "https://www.nseindia.com" {
		t.Fatalf("defaults lost during merge: %s", cfg.Feed.BaseURL)
	}
}

func TestLoadEnvOverridesWinOverFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
database:
  dsn: postgres://file/db
chatgpt:
  apiKey: from-file
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(configPathEnv, path)
	t.Setenv(databaseDSNEnv, "postgres://env/db")
	t.Setenv(chatGPTAPIKeyEnv, "from-env")
	t.Setenv(whatsAppTokenEnv, "wa-token")

	cfg := Load()

	if cfg.Database.DSN != "postgres://env/db" {
		t.Fatalf("env DSN must win: %s", cfg.Database.DSN)
	}
	if cfg.ChatGPT.APIKey != "from-env" {
		t.Fatalf("env API key must win: %s", cfg.ChatGPT.APIKey)
	}
	if cfg.WhatsApp.Token != "wa-token" {
		t.Fatalf("env token not applied: %s", cfg.WhatsApp.Token)
	}
}

func TestLoadUnreadableFileFallsBack(t *testing.T) {
	t.Setenv(configPathEnv, filepath.Join(t.TempDir(), "missing.yaml"))

	cfg := Load()
	if cfg.Feed.BaseURL != "https://www.nseindia.com" {
		t.Fatalf("expected defaults when the file is unreadable: %s", cfg.Feed.BaseURL)
	}
}

func TestBindTimezoneRejectsUnknownZone(t *testing.T) {
	cfg := defaultConfig()
	cfg.Scheduler.Timezone = "Mars/Olympus"
	cfg.bindTimezone()

	if cfg.Scheduler.Location().String() != "Asia/Kolkata" {
		t.Fatalf("unknown timezone must revert to default, got %s", cfg.Scheduler.Location())
	}
}
