package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/EternisAI/certpass/internal/ids"
	"github.com/go-redis/redis/v8"
)

const DefaultRedisKeyPrefix = "certpass:rl:"

// RedisStore keeps one sorted set per identifier+action, scored by the
// attempt time in milliseconds.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
	retention time.Duration
}

type RedisConfig struct {
	Addr      string        `mapstructure:"addr"`
	Password  string        `mapstructure:"password"`
	DB        int           `mapstructure:"db"`
	KeyPrefix string        `mapstructure:"key_prefix"`
	Retention time.Duration `mapstructure:"retention"`
}

func NewRedisStore(client *redis.Client, keyPrefix string, retention time.Duration) *RedisStore {
	if keyPrefix == "" {
		keyPrefix = DefaultRedisKeyPrefix
	}
	if retention <= 0 {
		retention = 48 * time.Hour
	}
	return &RedisStore{client: client, keyPrefix: keyPrefix, retention: retention}
}

func NewRedisClient(cfg RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

func (s *RedisStore) key(identifier, action string) string {
	return s.keyPrefix + action + ":" + identifier
}

func (s *RedisStore) Window(ctx context.Context, identifier, action string, since time.Time) (Window, error) {
	key := s.key(identifier, action)
	lo := "(" + strconv.FormatInt(since.UnixMilli(), 10)

	pipe := s.client.Pipeline()
	count := pipe.ZCount(ctx, key, lo, "+inf")
	oldest := pipe.ZRangeByScoreWithScores(ctx, key, &redis.ZRangeBy{Min: lo, Max: "+inf", Offset: 0, Count: 1})
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return Window{}, fmt.Errorf("read rate limit window: %w", err)
	}

	w := Window{Count: int(count.Val())}
	if zs := oldest.Val(); len(zs) > 0 {
		w.Oldest = time.UnixMilli(int64(zs[0].Score))
	}
	return w, nil
}

func (s *RedisStore) Record(ctx context.Context, rec Record) error {
	key := s.key(rec.Identifier, rec.Action)
	pipe := s.client.TxPipeline()
	pipe.ZAdd(ctx, key, &redis.Z{
		Score:  float64(rec.Timestamp.UnixMilli()),
		Member: ids.New() + "|" + rec.SourceIP,
	})
	pipe.Expire(ctx, key, s.retention)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record rate limit attempt: %w", err)
	}
	return nil
}

func (s *RedisStore) PurgeBefore(ctx context.Context, action string, before time.Time) (int64, error) {
	hi := "(" + strconv.FormatInt(before.UnixMilli(), 10)
	var removed int64
	iter := s.client.Scan(ctx, 0, s.keyPrefix+action+":*", 100).Iterator()
	for iter.Next(ctx) {
		n, err := s.client.ZRemRangeByScore(ctx, iter.Val(), "-inf", hi).Result()
		if err != nil {
			return removed, fmt.Errorf("purge rate limit records: %w", err)
		}
		removed += n
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("scan rate limit keys: %w", err)
	}
	return removed, nil
}
