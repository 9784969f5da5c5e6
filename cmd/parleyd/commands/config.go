package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/goccy/go-yaml"
)

// Config is the parleyd YAML configuration.
type Config struct {
	// Listen is the HTTP listen address. Default ":8080".
	Listen string `yaml:"listen"`

	// LogLevel is one of debug, info, warn, error. Default "info".
	LogLevel string `yaml:"log_level"`

	OpenAI  OpenAIConfig  `yaml:"openai"`
	Storage StorageConfig `yaml:"storage"`
	Archive ArchiveConfig `yaml:"archive"`
}

// OpenAIConfig configures the transcription and inference backends.
type OpenAIConfig struct {
	// APIKey falls back to the OPENAI_API_KEY environment variable.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the API base URL (proxies, compatible APIs).
	BaseURL string `yaml:"base_url"`

	// ChatModel backs classification, analysis, tactical generation,
	// opening questions, and summaries. Default "gpt-4o".
	ChatModel string `yaml:"chat_model"`

	// WhisperModel backs speech transcription. Default "whisper-1".
	WhisperModel string `yaml:"whisper_model"`

	// Temperature, when > 0, is sent on every chat request.
	Temperature float64 `yaml:"temperature"`

	// LanguageHint is passed to the transcriber on every call.
	LanguageHint string `yaml:"language_hint"`
}

// StorageConfig selects the audio blob store.
type StorageConfig struct {
	// Backend is one of s3, local, memory, none. Default "none"
	// (audio chunks are transcribed but not retained).
	Backend string `yaml:"backend"`

	S3    S3Config    `yaml:"s3"`
	Local LocalConfig `yaml:"local"`
}

// S3Config configures the s3 storage backend.
type S3Config struct {
	Bucket string `yaml:"bucket"`
	Region string `yaml:"region"`

	// Endpoint overrides the S3 endpoint for compatible stores
	// (MinIO, R2). Path-style addressing is used when set.
	Endpoint string `yaml:"endpoint"`

	// Credentials fall back to AWS_ACCESS_KEY_ID and
	// AWS_SECRET_ACCESS_KEY.
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`

	// Prefix is prepended to all object keys.
	Prefix string `yaml:"prefix"`

	// PublicBaseURL overrides the URL base of stored objects.
	PublicBaseURL string `yaml:"public_base_url"`
}

// LocalConfig configures the local-disk storage backend.
type LocalConfig struct {
	Dir     string `yaml:"dir"`
	BaseURL string `yaml:"base_url"`
}

// ArchiveConfig configures session archival.
type ArchiveConfig struct {
	// Dir is the BadgerDB directory. Empty disables archival unless
	// InMemory is set.
	Dir string `yaml:"dir"`

	// InMemory runs the archive database in memory (testing).
	InMemory bool `yaml:"in_memory"`
}

// LoadConfig reads and validates a YAML config file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Listen == "" {
		c.Listen = ":8080"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.OpenAI.APIKey == "" {
		c.OpenAI.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if c.OpenAI.ChatModel == "" {
		c.OpenAI.ChatModel = "gpt-4o"
	}
	if c.OpenAI.WhisperModel == "" {
		c.OpenAI.WhisperModel = "whisper-1"
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = "none"
	}
	if c.Storage.Backend == "s3" {
		if c.Storage.S3.AccessKeyID == "" {
			c.Storage.S3.AccessKeyID = os.Getenv("AWS_ACCESS_KEY_ID")
		}
		if c.Storage.S3.SecretAccessKey == "" {
			c.Storage.S3.SecretAccessKey = os.Getenv("AWS_SECRET_ACCESS_KEY")
		}
	}
}

func (c *Config) validate() error {
	if c.OpenAI.APIKey == "" {
		return fmt.Errorf("openai.api_key not configured (or set OPENAI_API_KEY)")
	}
	switch c.Storage.Backend {
	case "s3":
		if c.Storage.S3.Bucket == "" {
			return fmt.Errorf("storage.s3.bucket required for the s3 backend")
		}
	case "local":
		if c.Storage.Local.Dir == "" {
			return fmt.Errorf("storage.local.dir required for the local backend")
		}
	case "memory", "none":
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	if _, err := c.logLevel(); err != nil {
		return err
	}
	return nil
}

func (c *Config) logLevel() (slog.Level, error) {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("unknown log level %q", c.LogLevel)
}
