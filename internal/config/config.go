package config

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

type Config struct {
	DiscordToken  string       `yaml:"discord_token"`
	QueuePath     string       `yaml:"queue_path"`
	DatabasePath  string       `yaml:"database_path"`
	LogLevel      string       `yaml:"log_level"`
	RetentionDays int          `yaml:"retention_days"`
	Health        HealthConfig `yaml:"health"`
	Voice         VoiceConfig  `yaml:"voice"`
	Queue         QueueConfig  `yaml:"queue"`
	Embeds        EmbedColors  `yaml:"embed_colors"`
}

type HealthConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

type VoiceConfig struct {
	JoinTimeoutSeconds    int `yaml:"join_timeout_seconds"`
	ReconnectGraceSeconds int `yaml:"reconnect_grace_seconds"`
}

type QueueConfig struct {
	PageSize int `yaml:"page_size"`
}

type EmbedColors struct {
	Player int `yaml:"player"`
	Info   int `yaml:"info"`
	Error  int `yaml:"error"`
}

func DefaultConfig() Config {
	return Config{
		QueuePath:     "/data/music_queues.json",
		DatabasePath:  "/data/blackdiamond.db",
		LogLevel:      "info",
		RetentionDays: 30,
		Health:        HealthConfig{Enabled: false, Addr: ":8080"},
		Voice:         VoiceConfig{JoinTimeoutSeconds: 15, ReconnectGraceSeconds: 5},
		Queue:         QueueConfig{PageSize: 10},
		Embeds: EmbedColors{
			Player: 0xFF0000,
			Info:   0x0099FF,
			Error:  0xF97316,
		},
	}
}

func Load() (Config, error) {
	cfg := DefaultConfig()

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, err
		}
	}

	applyEnv(&cfg)
	if cfg.DiscordToken == "" {
		return Config{}, errors.New("DISCORD_TOKEN is required")
	}
	if cfg.Voice.JoinTimeoutSeconds <= 0 {
		cfg.Voice.JoinTimeoutSeconds = 15
	}
	if cfg.Voice.ReconnectGraceSeconds <= 0 {
		cfg.Voice.ReconnectGraceSeconds = 5
	}
	if cfg.Queue.PageSize <= 0 {
		cfg.Queue.PageSize = 10
	}

	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.DiscordToken = envString("DISCORD_TOKEN", cfg.DiscordToken)
	cfg.QueuePath = envString("QUEUE_PATH", cfg.QueuePath)
	cfg.DatabasePath = envString("DATABASE_PATH", cfg.DatabasePath)
	cfg.LogLevel = envString("LOG_LEVEL", cfg.LogLevel)
	cfg.RetentionDays = envInt("RETENTION_DAYS", cfg.RetentionDays)
	cfg.Health.Enabled = envBool("HEALTH_ENABLED", cfg.Health.Enabled)
	cfg.Health.Addr = envString("HEALTH_ADDR", cfg.Health.Addr)
	cfg.Voice.JoinTimeoutSeconds = envInt("VOICE_JOIN_TIMEOUT_SECONDS", cfg.Voice.JoinTimeoutSeconds)
	cfg.Voice.ReconnectGraceSeconds = envInt("VOICE_RECONNECT_GRACE_SECONDS", cfg.Voice.ReconnectGraceSeconds)
	cfg.Queue.PageSize = envInt("QUEUE_PAGE_SIZE", cfg.Queue.PageSize)
	cfg.Embeds.Player = envInt("EMBED_COLOR_PLAYER", cfg.Embeds.Player)
	cfg.Embeds.Info = envInt("EMBED_COLOR_INFO", cfg.Embeds.Info)
	cfg.Embeds.Error = envInt("EMBED_COLOR_ERROR", cfg.Embeds.Error)
}

func BuildLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "json"
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.MessageKey = "message"
	cfg.EncoderConfig.LevelKey = "level"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	lvl := strings.ToLower(level)
	switch lvl {
	case "debug", "info", "warn", "error":
		cfg.Level = zap.NewAtomicLevelAt(parseLevel(lvl))
	default:
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}

	return cfg.Build()
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func envString(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		lower := strings.ToLower(value)
		return lower == "1" || lower == "true" || lower == "yes"
	}
	return fallback
}
