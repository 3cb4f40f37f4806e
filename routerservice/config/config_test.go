package config_test

import (
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tinywideclouds/go-dispatch-router/routerservice/config"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestUpdateConfigWithEnvOverrides(t *testing.T) {
	logger := newTestLogger()

	baseConfig := func() *config.Config {
		return &config.Config{
			ProjectID:          "base-project",
			ListenAddr:         ":8080",
			SubscriptionID:     "base-sub",
			IntentTopicID:      "base-intents",
			NumPipelineWorkers: 2,
			Router: config.RouterConfig{
				DefaultTarget: "home",
				SeenCapacity:  100,
			},
		}
	}

	t.Run("Success - All overrides applied", func(t *testing.T) {
		cfg := baseConfig()

		t.Setenv("PROJECT_ID", "env-project")
		t.Setenv("PORT", "9090")
		t.Setenv("SUBSCRIPTION_ID", "env-sub")
		t.Setenv("INTENT_TOPIC_ID", "env-intents")

		t.Setenv("ROUTER_DEFAULT_TARGET", "inbox")
		t.Setenv("ROUTER_SEEN_CAPACITY", "500")
		t.Setenv("ROUTER_DEFAULT_TOPICS", "announcements, releases")
		t.Setenv("REDIS_SEEN_TTL", "48h")

		finalCfg, err := config.UpdateConfigWithEnvOverrides(cfg, logger)
		require.NoError(t, err)

		assert.Equal(t, "env-project", finalCfg.ProjectID)
		assert.Equal(t, ":9090", finalCfg.ListenAddr)
		assert.Equal(t, "env-sub", finalCfg.SubscriptionID)
		assert.Equal(t, "env-intents", finalCfg.IntentTopicID)

		assert.Equal(t, "inbox", finalCfg.Router.DefaultTarget)
		assert.Equal(t, 500, finalCfg.Router.SeenCapacity)
		assert.Equal(t, []string{"announcements", "releases"}, finalCfg.Router.DefaultTopics)
		assert.Equal(t, 48*time.Hour, finalCfg.Redis.SeenTTL)
	})

	t.Run("Success - Defaults preserved", func(t *testing.T) {
		cfg := baseConfig()
		finalCfg, err := config.UpdateConfigWithEnvOverrides(cfg, logger)
		require.NoError(t, err)

		assert.Equal(t, "base-project", finalCfg.ProjectID)
		assert.Equal(t, "home", finalCfg.Router.DefaultTarget)
		assert.Equal(t, 24*time.Hour, finalCfg.Redis.SeenTTL)
	})

	t.Run("Validation Failure - Missing ProjectID", func(t *testing.T) {
		cfg := &config.Config{SubscriptionID: "sub", IntentTopicID: "intents"}
		os.Unsetenv("PROJECT_ID")
		_, err := config.UpdateConfigWithEnvOverrides(cfg, logger)
		assert.Error(t, err)
	})

	t.Run("Validation Failure - Missing IntentTopicID", func(t *testing.T) {
		cfg := &config.Config{ProjectID: "project", SubscriptionID: "sub"}
		os.Unsetenv("INTENT_TOPIC_ID")
		_, err := config.UpdateConfigWithEnvOverrides(cfg, logger)
		assert.Error(t, err)
	})
}
