package coordinator

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	id "dealroom/pkg/domain"
)

// defaultClaimTTL bounds how long claims outlive their extraction run in a
// shared Redis. Claims are advisory and per-run; a day is generous.
const defaultClaimTTL = 24 * time.Hour

// RedisStore implements ports.ClaimStore on a shared Redis list per
// (doc, name), so extraction workers across processes see each other's
// claims. Put is check-then-push without a transaction: a racing duplicate
// claim is harmless for advisory bookkeeping.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore wraps a connected go-redis client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, ttl: defaultClaimTTL}
}

// Put appends domain to the claim list unless already present.
func (s *RedisStore) Put(ctx context.Context, docID id.DocumentID, normalizedName, domain string) error {
	key := redisClaimKey(docID, normalizedName)

	_, err := s.client.LPos(ctx, key, domain, redis.LPosArgs{}).Result()
	if err == nil {
		return nil
	}
	if err != redis.Nil {
		return fmt.Errorf("check claim: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, key, domain)
	pipe.Expire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("put claim: %w", err)
	}
	return nil
}

// Get returns the claiming domains in claim order.
func (s *RedisStore) Get(ctx context.Context, docID id.DocumentID, normalizedName string) ([]string, error) {
	domains, err := s.client.LRange(ctx, redisClaimKey(docID, normalizedName), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("get claims: %w", err)
	}
	return domains, nil
}

func redisClaimKey(docID id.DocumentID, normalizedName string) string {
	return fmt.Sprintf("dealroom:claims:%s:%s", docID, normalizedName)
}
