package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/watchcore/config"
)

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, 256, cfg.QueueCapacity)
	assert.Equal(t, time.Second, cfg.PollingInterval)
	assert.Equal(t, 100*time.Millisecond, cfg.PollingThrottle)
}

func TestLoadHonorsEnvOverride(t *testing.T) {
	t.Setenv("WATCHCORE_QUEUE_CAPACITY", "1024")
	t.Setenv("WATCHCORE_POLLING_INTERVAL", "5s")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, 1024, cfg.QueueCapacity)
	assert.Equal(t, 5*time.Second, cfg.PollingInterval)
}
