package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsFromEnvironment(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,,")
	t.Setenv("PORT", "")
	t.Setenv("EVENT_SINK", "")

	cfg, err := Load(New(), "")
	require.NoError(t, err)

	assert.Equal(t, ":8083", cfg.HTTPAddr())
	assert.Equal(t, "amqp", cfg.EventSink)
	assert.Equal(t, 7*24*time.Hour, cfg.InviteTTL)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 64, cfg.WSSendBuffer)
}

func TestLoadRequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	_, err := Load(New(), "")
	require.Error(t, err)
}

func TestLoadKafkaNeedsBrokers(t *testing.T) {
	t.Setenv("JWT_SECRET", "x")
	t.Setenv("EVENT_SINK", "KAFKA")
	t.Setenv("KAFKA_BROKERS", "")

	_, err := Load(New(), "")
	require.ErrorContains(t, err, "kafka_brokers")
}

func TestLoadConfigFile(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("PORT", "")
	dir := t.TempDir()
	path := filepath.Join(dir, "guild-chat.yaml")
	require.NoError(t, os.WriteFile(path, []byte("jwt_secret: fromfile\nport: \"127.0.0.1:9000\"\ninvite_ttl: 48h\n"), 0o600))

	cfg, err := Load(New(), path)
	require.NoError(t, err)
	assert.Equal(t, "fromfile", cfg.JWTSecret)
	assert.Equal(t, "127.0.0.1:9000", cfg.HTTPAddr())
	assert.Equal(t, 48*time.Hour, cfg.InviteTTL)
}
