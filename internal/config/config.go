// Package config загружает конфигурацию сервера приключений из переменных
// окружения.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config содержит полную конфигурацию сервера.
type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	Server  ServerConfig
	Redis   RedisConfig
	AI      AIConfig
	JWT     JWTConfig
	Session SessionConfig
	Content ContentConfig
}

// ServerConfig содержит настройки HTTP-сервера.
type ServerConfig struct {
	Port         int           `envconfig:"SERVER_PORT" default:"8080"`
	ReadTimeout  time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"15s"`
	IdleTimeout  time.Duration `envconfig:"SERVER_IDLE_TIMEOUT" default:"60s"`
}

// RedisConfig содержит настройки хранилища состояний.
type RedisConfig struct {
	Addr     string        `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	Password string        `envconfig:"REDIS_PASSWORD" default:""`
	DB       int           `envconfig:"REDIS_DB" default:"0"`
	StateTTL time.Duration `envconfig:"REDIS_STATE_TTL" default:"720h"` // 30 дней
}

// AIConfig содержит настройки генерации текста и изображений.
type AIConfig struct {
	APIKey       string        `envconfig:"AI_API_KEY"`
	BaseURL      string        `envconfig:"AI_BASE_URL" default:"https://api.openai.com/v1"`
	Model        string        `envconfig:"AI_MODEL" default:"gpt-4o-mini"`
	ImageModel   string        `envconfig:"AI_IMAGE_MODEL" default:"dall-e-3"`
	Timeout      time.Duration `envconfig:"AI_TIMEOUT" default:"120s"`
	MaxAttempts  int           `envconfig:"AI_MAX_ATTEMPTS" default:"3"`
	ImageTimeout time.Duration `envconfig:"AI_IMAGE_TIMEOUT" default:"30s"`
	ImagesOn     bool          `envconfig:"AI_IMAGES_ENABLED" default:"false"`
}

// JWTConfig содержит настройки опциональной идентификации пользователя.
// Пустой секрет означает анонимный режим.
type JWTConfig struct {
	Secret string `envconfig:"JWT_SECRET" default:""`
}

// SessionConfig содержит настройки протяжённости приключения.
type SessionConfig struct {
	DefaultStoryLength int `envconfig:"SESSION_DEFAULT_STORY_LENGTH" default:"10"`
	MaxStoryLength     int `envconfig:"SESSION_MAX_STORY_LENGTH" default:"20"`
}

// ContentConfig указывает на YAML-пак с темами, элементами и вопросами.
type ContentConfig struct {
	PackPath string `envconfig:"CONTENT_PACK_PATH" default:"content/pack.yaml"`
}

// Load загружает конфигурацию из переменных окружения.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("ошибка загрузки конфигурации: %w", err)
	}
	if cfg.AI.APIKey == "" {
		return nil, fmt.Errorf("AI_API_KEY not set")
	}
	return &cfg, nil
}
