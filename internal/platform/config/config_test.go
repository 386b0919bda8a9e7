package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromEnv_Defaults(t *testing.T) {
	cfg := FromEnv()

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Empty(t, cfg.RedisURL)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.Equal(t, 500, cfg.ReconcileMaxItems)
	assert.InDelta(t, 0.85, cfg.SimilarityThreshold, 1e-9)
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("DEALROOM_ADDR", ":9090")
	t.Setenv("DEALROOM_KAFKA_BROKERS", "broker-1:9092, broker-2:9092,")
	t.Setenv("DEALROOM_RECONCILE_MAX_ITEMS", "250")
	t.Setenv("DEALROOM_SIMILARITY_THRESHOLD", "0.9")

	cfg := FromEnv()

	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, []string{"broker-1:9092", "broker-2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 250, cfg.ReconcileMaxItems)
	assert.InDelta(t, 0.9, cfg.SimilarityThreshold, 1e-9)
}

func TestFromEnv_IgnoresUnparsableNumbers(t *testing.T) {
	t.Setenv("DEALROOM_RECONCILE_MAX_ITEMS", "lots")
	t.Setenv("DEALROOM_SIMILARITY_THRESHOLD", "very")

	cfg := FromEnv()

	assert.Equal(t, 500, cfg.ReconcileMaxItems)
	assert.InDelta(t, 0.85, cfg.SimilarityThreshold, 1e-9)
}
