package commands

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := LoadConfig(writeConfig(t, `
openai:
  api_key: sk-test
`))
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		if cfg.Listen != ":8080" {
			t.Errorf("listen=%q", cfg.Listen)
		}
		if cfg.OpenAI.ChatModel != "gpt-4o" || cfg.OpenAI.WhisperModel != "whisper-1" {
			t.Errorf("models=%q/%q", cfg.OpenAI.ChatModel, cfg.OpenAI.WhisperModel)
		}
		if cfg.Storage.Backend != "none" {
			t.Errorf("backend=%q", cfg.Storage.Backend)
		}
		if lvl, err := cfg.logLevel(); err != nil || lvl != slog.LevelInfo {
			t.Errorf("level=%v err=%v", lvl, err)
		}
	})

	t.Run("full", func(t *testing.T) {
		cfg, err := LoadConfig(writeConfig(t, `
listen: ":9000"
log_level: debug
openai:
  api_key: sk-test
  base_url: https://proxy.example.com/v1
  chat_model: gpt-4o-mini
  temperature: 0.4
  language_hint: en
storage:
  backend: s3
  s3:
    bucket: parley-audio
    region: us-east-1
    access_key_id: AKIA
    secret_access_key: shh
    prefix: prod
archive:
  dir: /var/lib/parley
`))
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		if cfg.Listen != ":9000" || cfg.OpenAI.ChatModel != "gpt-4o-mini" {
			t.Errorf("cfg=%+v", cfg)
		}
		if cfg.Storage.S3.Bucket != "parley-audio" || cfg.Storage.S3.Prefix != "prod" {
			t.Errorf("s3=%+v", cfg.Storage.S3)
		}
		if cfg.Archive.Dir != "/var/lib/parley" {
			t.Errorf("archive=%+v", cfg.Archive)
		}
	})

	t.Run("api key from environment", func(t *testing.T) {
		t.Setenv("OPENAI_API_KEY", "sk-env")
		cfg, err := LoadConfig(writeConfig(t, "listen: \":8081\"\n"))
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		if cfg.OpenAI.APIKey != "sk-env" {
			t.Errorf("key=%q", cfg.OpenAI.APIKey)
		}
	})

	t.Run("missing api key", func(t *testing.T) {
		t.Setenv("OPENAI_API_KEY", "")
		_, err := LoadConfig(writeConfig(t, "listen: \":8081\"\n"))
		if err == nil || !strings.Contains(err.Error(), "api_key") {
			t.Errorf("got %v", err)
		}
	})

	t.Run("invalid backend", func(t *testing.T) {
		_, err := LoadConfig(writeConfig(t, `
openai:
  api_key: sk-test
storage:
  backend: ftp
`))
		if err == nil || !strings.Contains(err.Error(), "storage backend") {
			t.Errorf("got %v", err)
		}
	})

	t.Run("s3 backend requires bucket", func(t *testing.T) {
		_, err := LoadConfig(writeConfig(t, `
openai:
  api_key: sk-test
storage:
  backend: s3
`))
		if err == nil || !strings.Contains(err.Error(), "bucket") {
			t.Errorf("got %v", err)
		}
	})
}
