package config

import (
	"errors"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port           string   `yaml:"port"`
		AllowedOrigins []string `yaml:"allowedOrigins"`
	} `yaml:"server"`
	Backend struct {
		URL        string `yaml:"url"`
		Timeout    string `yaml:"timeout"`
		SubmitBody string `yaml:"submitBody"` // envelope | list
	} `yaml:"backend"`
	Attempt struct {
		TickInterval  string `yaml:"tickInterval"`
		SubmitTimeout string `yaml:"submitTimeout"`
		Checkpoints   string `yaml:"checkpoints"` // off | memory | redis
		CheckpointTTL string `yaml:"checkpointTTL"`
		ResultTTL     string `yaml:"resultTTL"`
	} `yaml:"attempt"`
	Redis struct {
		Addr         string `yaml:"addr"`
		Password     string `yaml:"password"`
		DB           int    `yaml:"db"`
		SessionLease string `yaml:"sessionLease"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Quiz struct {
		TTL string `yaml:"ttl"`
	} `yaml:"quiz"`
	Stub struct {
		Port      string `yaml:"port"`
		JWTSecret string `yaml:"jwtSecret"`
		TokenTTL  string `yaml:"tokenTTL"`
		Users     []struct {
			Email    string `yaml:"email"`
			Password string `yaml:"password"`
			Role     string `yaml:"role"`
		} `yaml:"users"`
	} `yaml:"stub"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// Load reads the YAML config at path and applies environment overrides.
// A missing file is not an error; everything can come from the environment.
// A .env file in the working directory is loaded first when present.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	cfg := Config{}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return cfg, err
	}

	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	override(&cfg.Backend.URL, "BACKEND_URL")
	override(&cfg.Backend.SubmitBody, "BACKEND_SUBMIT_BODY")
	override(&cfg.Backend.Timeout, "BACKEND_TIMEOUT")
	override(&cfg.Redis.Addr, "REDIS_ADDR")
	override(&cfg.Redis.Password, "REDIS_PASSWORD")
	override(&cfg.Postgres.URL, "DATABASE_URL")
	override(&cfg.Stub.JWTSecret, "JWT_SECRET")
	override(&cfg.Log.Level, "LOG_LEVEL")
	override(&cfg.Log.Format, "LOG_FORMAT")
	override(&cfg.Attempt.Checkpoints, "ATTEMPT_CHECKPOINTS")
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		cfg.Server.AllowedOrigins = splitList(origins)
	}
}

func override(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
