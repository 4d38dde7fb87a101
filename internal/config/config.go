package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Inference InferenceConfig
	Notify    NotifyConfig
	Stream    StreamConfig
}

type ServerConfig struct {
	Port           int
	APIKey         string
	AllowedOrigins []string
}

type DatabaseConfig struct {
	DSN string
}

type InferenceConfig struct {
	BaseURL         string
	APIToken        string
	ThreatModel     string
	FireModel       string
	TTSModel        string
	ThreatThreshold float64
	FireThreshold   float64
	// FallbackThreshold accepts detections above this score even when the
	// label does not match the domain keyword set.
	FallbackThreshold float64
	Timeout           time.Duration
}

type NotifyConfig struct {
	// URLs are shoutrrr service URLs; empty means notifications are disabled.
	URLs []string
}

type StreamConfig struct {
	PollInterval      time.Duration
	HeartbeatInterval time.Duration
	BatchSize         int
}

func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("database.dsn", "host=localhost user=parkwatch dbname=parkwatch sslmode=disable")
	v.SetDefault("inference.base_url", "https://api-inference.huggingface.co/models")
	v.SetDefault("inference.threat_model", "Subh775/Threat-Detection-YOLOv8n")
	v.SetDefault("inference.fire_model", "Subh775/Fire-Detection-YOLOv8n")
	v.SetDefault("inference.tts_model", "ai4bharat/indic-parler-tts")
	v.SetDefault("inference.threat_threshold", 0.3)
	v.SetDefault("inference.fire_threshold", 0.2)
	v.SetDefault("inference.fallback_threshold", 0.7)
	v.SetDefault("inference.timeout", 30*time.Second)
	v.SetDefault("notify.urls", []string{})
	v.SetDefault("stream.poll_interval", 2*time.Second)
	v.SetDefault("stream.heartbeat_interval", 30*time.Second)
	v.SetDefault("stream.batch_size", 10)

	v.SetEnvPrefix("PARKWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/parkwatch")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:           v.GetInt("server.port"),
			APIKey:         v.GetString("server.api_key"),
			AllowedOrigins: v.GetStringSlice("server.allowed_origins"),
		},
		Database: DatabaseConfig{
			DSN: v.GetString("database.dsn"),
		},
		Inference: InferenceConfig{
			BaseURL:           v.GetString("inference.base_url"),
			APIToken:          v.GetString("inference.api_token"),
			ThreatModel:       v.GetString("inference.threat_model"),
			FireModel:         v.GetString("inference.fire_model"),
			TTSModel:          v.GetString("inference.tts_model"),
			ThreatThreshold:   v.GetFloat64("inference.threat_threshold"),
			FireThreshold:     v.GetFloat64("inference.fire_threshold"),
			FallbackThreshold: v.GetFloat64("inference.fallback_threshold"),
			Timeout:           v.GetDuration("inference.timeout"),
		},
		Notify: NotifyConfig{
			URLs: v.GetStringSlice("notify.urls"),
		},
		Stream: StreamConfig{
			PollInterval:      v.GetDuration("stream.poll_interval"),
			HeartbeatInterval: v.GetDuration("stream.heartbeat_interval"),
			BatchSize:         v.GetInt("stream.batch_size"),
		},
	}

	if cfg.Server.APIKey == "" {
		return nil, fmt.Errorf("server.api_key is required")
	}

	return cfg, nil
}
