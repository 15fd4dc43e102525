package cmd

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"guild-chat-service/internal/config"
	"guild-chat-service/internal/locks"
)

func TestLoadConfigRequiresSecret(t *testing.T) {
	v.Set(config.KeyJWTSecret, "")
	_, err := loadConfig()
	assert.Error(t, err)

	v.Set(config.KeyJWTSecret, "cli-secret")
	v.Set(config.KeyEventSink, "none")
	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "none", cfg.EventSink)
}

func TestOpenEventSinkNone(t *testing.T) {
	sink := openEventSink(config.Config{EventSink: "none"})
	assert.NoError(t, sink.Publish(context.Background(), "audit.x", map[string]string{"a": "b"}))
	assert.NoError(t, sink.Close())
}

func TestOpenPairLockWithoutRedis(t *testing.T) {
	lock := openPairLock(context.Background(), config.Config{})
	assert.IsType(t, locks.NoopPairLock{}, lock)
}
