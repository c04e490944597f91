package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the Nexis server.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Media     MediaConfig
	Models    ModelsConfig
	Worker    WorkerConfig
	Narrative NarrativeConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL string
}

type MediaConfig struct {
	FFmpegPath  string
	FFprobePath string
	UploadDir   string
	TempDir     string
}

type ModelsConfig struct {
	Dir         string
	ImageModel  string
	ImageLabels string
	AudioModel  string
	TextModel   string
	TextLabels  string
	TextVocab   string
	FusionModel string
}

type WorkerConfig struct {
	Count        int
	QueueSize    int
	StaleTimeout time.Duration
	SweepEvery   time.Duration
}

type NarrativeConfig struct {
	Provider string
	Timeout  time.Duration
	OpenAI   OpenAIConfig
}

type OpenAIConfig struct {
	BaseURL string
	APIKey  string
	Model   string
}

var validProviders = map[string]bool{
	"openai": true,
	"mock":   true,
}

// Load reads configuration from environment variables and returns a validated Config.
// Returns an error with a descriptive message if any required value is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: envInt("NEXIS_PORT", 8080),
			Env:  envString("NEXIS_ENV", "development"),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Media: MediaConfig{
			FFmpegPath:  envString("FFMPEG_PATH", "ffmpeg"),
			FFprobePath: envString("FFPROBE_PATH", "ffprobe"),
			UploadDir:   envString("UPLOAD_DIR", "uploads"),
			TempDir:     envString("MEDIA_TEMP_DIR", ""),
		},
		Models: ModelsConfig{
			Dir:         envString("MODELS_DIR", "metamodels"),
			ImageModel:  envString("IMAGE_MODEL", "face_emotion.tflite"),
			ImageLabels: envString("IMAGE_LABELS", "face_emotion_labels.txt"),
			AudioModel:  envString("AUDIO_MODEL", "audio_embedding.tflite"),
			TextModel:   envString("TEXT_MODEL", "text_emotion.tflite"),
			TextLabels:  envString("TEXT_LABELS", "text_emotion_labels.txt"),
			TextVocab:   envString("TEXT_VOCAB", "text_emotion_vocab.txt"),
			FusionModel: envString("FUSION_MODEL", "emotion_fusion.tflite"),
		},
		Worker: WorkerConfig{
			Count:        envInt("WORKER_COUNT", 2),
			QueueSize:    envInt("WORKER_QUEUE_SIZE", 64),
			StaleTimeout: envDuration("WORKER_STALE_TIMEOUT", 15*time.Minute),
			SweepEvery:   envDuration("WORKER_SWEEP_INTERVAL", 5*time.Minute),
		},
		Narrative: NarrativeConfig{
			Provider: envString("NARRATIVE_PROVIDER", "mock"),
			Timeout:  envDuration("NARRATIVE_TIMEOUT", 30*time.Second),
			OpenAI: OpenAIConfig{
				BaseURL: envString("OPENAI_BASE_URL", "https://api.openai.com/v1"),
				APIKey:  os.Getenv("OPENAI_API_KEY"),
				Model:   envString("OPENAI_MODEL", "gpt-4o-mini"),
			},
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if !validProviders[c.Narrative.Provider] {
		return fmt.Errorf("NARRATIVE_PROVIDER must be one of openai, mock; got %q", c.Narrative.Provider)
	}
	if c.Narrative.Provider == "openai" {
		if c.Narrative.OpenAI.APIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required when NARRATIVE_PROVIDER is openai")
		}
		if !strings.HasPrefix(c.Narrative.OpenAI.BaseURL, "http://") && !strings.HasPrefix(c.Narrative.OpenAI.BaseURL, "https://") {
			return fmt.Errorf("OPENAI_BASE_URL must start with http:// or https://, got %q", c.Narrative.OpenAI.BaseURL)
		}
	}

	if c.Worker.Count < 1 {
		return fmt.Errorf("WORKER_COUNT must be at least 1, got %d", c.Worker.Count)
	}
	if c.Worker.QueueSize < 1 {
		return fmt.Errorf("WORKER_QUEUE_SIZE must be at least 1, got %d", c.Worker.QueueSize)
	}

	return nil
}

// ModelPath resolves a model artifact name against the models directory.
// Absolute names are used as-is.
func (c *Config) ModelPath(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.Models.Dir, name)
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
