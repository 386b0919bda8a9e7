package config

import (
	"os"
	"strconv"
	"strings"

	"dealroom/internal/resolution/reconcile"
	"dealroom/internal/resolution/repository"
)

// Resolver captures process-level configuration. Kernel tunables default to
// the values the resolution packages declare so env vars only override.
type Resolver struct {
	// Addr is the ops HTTP listen address (healthz, metrics).
	Addr string
	// RedisURL enables the shared extraction-claim store when set.
	RedisURL string
	// PostgresURL enables the snapshot export sink when set.
	PostgresURL string
	// KafkaBrokers enables the Kafka audit publisher when non-empty.
	KafkaBrokers []string

	ReconcileMaxItems   int
	SimilarityThreshold float64
	IngestWorkers       int
}

// FromEnv builds a Resolver config from environment variables so main stays
// lean. Unset optional backends leave their fields zero; main treats those
// as "feature off".
func FromEnv() Resolver {
	addr := os.Getenv("DEALROOM_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	var brokers []string
	if raw := os.Getenv("DEALROOM_KAFKA_BROKERS"); raw != "" {
		for _, b := range strings.Split(raw, ",") {
			if b = strings.TrimSpace(b); b != "" {
				brokers = append(brokers, b)
			}
		}
	}

	return Resolver{
		Addr:                addr,
		RedisURL:            os.Getenv("DEALROOM_REDIS_URL"),
		PostgresURL:         os.Getenv("DEALROOM_POSTGRES_URL"),
		KafkaBrokers:        brokers,
		ReconcileMaxItems:   envInt("DEALROOM_RECONCILE_MAX_ITEMS", reconcile.DefaultMaxItems),
		SimilarityThreshold: envFloat("DEALROOM_SIMILARITY_THRESHOLD", repository.DefaultSimilarityThreshold),
		IngestWorkers:       envInt("DEALROOM_INGEST_WORKERS", 0),
	}
}

func envInt(key string, def int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func envFloat(key string, def float64) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return def
	}
	return f
}
