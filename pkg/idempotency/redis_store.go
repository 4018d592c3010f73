package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps records as JSON values under prefixed keys.
type RedisStore struct {
	client redis.UniversalClient
	ttl    time.Duration
	prefix string
	now    func() time.Time
}

func NewRedisStore(client redis.UniversalClient, cfg Config) *RedisStore {
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	return &RedisStore{
		client: client,
		ttl:    cfg.TTL,
		prefix: cfg.Prefix,
		now:    time.Now,
	}
}

func (s *RedisStore) Reserve(ctx context.Context, key string) (*Record, bool, error) {
	if key == "" {
		return nil, false, ErrEmptyKey
	}

	rec := &Record{Key: key, Status: StatusInProgress, CreatedAt: s.now().UTC()}
	val, err := json.Marshal(rec)
	if err != nil {
		return nil, false, errors.Join(ErrInvalidRecord, err)
	}

	// The existing key may expire between SetNX and Get. One more SetNX
	// then either takes the key or finds the record that replaced it.
	for attempt := 0; ; attempt++ {
		created, err := s.client.SetNX(ctx, s.prefix+key, val, s.ttl).Result()
		if err != nil {
			return nil, false, errors.Join(ErrStoreFailure, err)
		}
		if created {
			return rec, true, nil
		}

		existing, err := s.get(ctx, key)
		if errors.Is(err, ErrKeyNotFound) && attempt == 0 {
			continue
		}
		if err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}
}

func (s *RedisStore) Complete(ctx context.Context, key, result string) error {
	rec, err := s.get(ctx, key)
	if err != nil {
		return err
	}
	rec.Status = StatusCompleted
	rec.Result = result

	val, err := json.Marshal(rec)
	if err != nil {
		return errors.Join(ErrInvalidRecord, err)
	}
	if err := s.client.SetArgs(ctx, s.prefix+key, val, redis.SetArgs{KeepTTL: true, Mode: "XX"}).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return errors.Join(ErrStoreFailure, err)
	}
	return nil
}

func (s *RedisStore) Release(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return errors.Join(ErrStoreFailure, err)
	}
	return nil
}

func (s *RedisStore) get(ctx context.Context, key string) (*Record, error) {
	raw, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, errors.Join(ErrStoreFailure, err)
	}

	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, errors.Join(ErrInvalidRecord, err)
	}
	return &rec, nil
}
