package config

import (
	"log"
	"time"

	"journeytracker/pkg/config"
)

type Config struct {
	DB     config.DBConfig     `yaml:"db"`
	MQ     config.MQConfig     `yaml:"mq"`
	Redis  config.RedisConfig  `yaml:"redis"`
	JWT    config.JWTConfig    `yaml:"jwt"`
	Server config.ServerConfig `yaml:"server"`

	Recommendation RecommendationConfig `yaml:"recommendation"`
	Outbox         OutboxConfig         `yaml:"outbox"`
}

type RecommendationConfig struct {
	CacheTTLSeconds int `yaml:"cache_ttl_seconds"`
}

func (c RecommendationConfig) CacheTTL() time.Duration {
	if c.CacheTTLSeconds <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

type OutboxConfig struct {
	IntervalMS int `yaml:"interval_ms"`
	BatchSize  int `yaml:"batch_size"`
	MaxRetries int `yaml:"max_retries"`
}

func Load() *Config {
	var cfg Config
	if err := config.LoadInto(config.GetConfigEnv(), "config", &cfg); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// 环境变量覆盖
	config.OverrideDBFromEnv(&cfg.DB)
	config.OverrideMQFromEnv(&cfg.MQ)
	config.OverrideRedisFromEnv(&cfg.Redis)
	config.OverrideJWTFromEnv(&cfg.JWT)
	config.OverrideServerFromEnv(&cfg.Server)

	return &cfg
}
