package config

import (
	"log/slog"
	"time"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"
)

type YamlCorsConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	Role           string   `yaml:"role"`
}

type YamlRedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	Enabled  bool          `yaml:"enabled"`
	SeenTTL  time.Duration `yaml:"seen_ttl"`
}

type YamlRouterConfig struct {
	DefaultTarget string   `yaml:"default_target"`
	SeenCapacity  int      `yaml:"seen_capacity"`
	DefaultTopics []string `yaml:"default_topics"`
}

// YamlConfig is the structure that mirrors the raw config.yaml file.
type YamlConfig struct {
	ProjectID              string           `yaml:"project_id"`
	ListenAddr             string           `yaml:"listen_addr"`
	IngestTopicID          string           `yaml:"ingest_topic_id"`
	IntentTopicID          string           `yaml:"intent_topic_id"`
	SubscriptionID         string           `yaml:"subscription_id"`
	SubscriptionDLQTopicID string           `yaml:"subscription_dlq_topic_id"`
	CorsConfig             YamlCorsConfig   `yaml:"cors"`
	RedisConfig            YamlRedisConfig  `yaml:"redis"`
	RouterConfig           YamlRouterConfig `yaml:"router"`
	NumPipelineWorkers     int              `yaml:"num_pipeline_workers"`
}

// NewConfigFromYaml converts the YamlConfig into a clean, base Config struct.
func NewConfigFromYaml(baseCfg *YamlConfig, logger *slog.Logger) (*Config, error) {
	logger.Debug("Mapping YAML config to base config struct")

	cfg := &Config{
		ProjectID:      baseCfg.ProjectID,
		ListenAddr:     baseCfg.ListenAddr,
		IngestTopicID:  baseCfg.IngestTopicID,
		IntentTopicID:  baseCfg.IntentTopicID,
		SubscriptionID: baseCfg.SubscriptionID,
		CorsConfig: middleware.CorsConfig{
			AllowedOrigins: baseCfg.CorsConfig.AllowedOrigins,
			Role:           middleware.CorsRole(baseCfg.CorsConfig.Role),
		},
		Redis: RedisConfig{
			Addr:     baseCfg.RedisConfig.Addr,
			Password: baseCfg.RedisConfig.Password,
			DB:       baseCfg.RedisConfig.DB,
			Enabled:  baseCfg.RedisConfig.Enabled,
			SeenTTL:  baseCfg.RedisConfig.SeenTTL,
		},
		Router: RouterConfig{
			DefaultTarget: baseCfg.RouterConfig.DefaultTarget,
			SeenCapacity:  baseCfg.RouterConfig.SeenCapacity,
			DefaultTopics: baseCfg.RouterConfig.DefaultTopics,
		},
		SubscriptionDLQTopicID: baseCfg.SubscriptionDLQTopicID,
		NumPipelineWorkers:     baseCfg.NumPipelineWorkers,
	}

	if cfg.SubscriptionID != "" {
		cfg.PubsubConsumerConfig = messagepipeline.NewGooglePubsubConsumerDefaults(cfg.SubscriptionID)
	}

	logger.Debug("YAML config mapping complete",
		"project_id", cfg.ProjectID,
		"listen_addr", cfg.ListenAddr,
		"subscription_id", cfg.SubscriptionID,
		"intent_topic_id", cfg.IntentTopicID,
	)

	return cfg, nil
}
