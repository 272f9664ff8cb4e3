package sessions

import (
	"medintake.com/intake/flow"
	"medintake.com/intake/redis"
	"context"
	"errors"
	"fmt"
	"github.com/kelseyhightower/envconfig"
	"time"
)

type Config struct {
	DB         int           `envconfig:"INTAKE_SESSIONS_REDIS_DB" default:"0"`
	SessionTTL time.Duration `envconfig:"INTAKE_SESSIONS_TTL" default:"24h"`
}

type docStore interface {
	GetDoc(ctx context.Context, redisKey string, doc interface{}) error
	SaveDoc(ctx context.Context, redisKey string, doc interface{}, ttl time.Duration) error
	Delete(ctx context.Context, redisKey string) error
	Lock(ctx context.Context, redisKey string) (redis.ReleaseLock, error)
	Close() error
}

// RedisStore keeps session state in redis, one JSON document per session.
type RedisStore struct {
	client docStore
	ttl    time.Duration
}

func NewRedisStore() (*RedisStore, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	client, err := redis.NewClient(redis.DB(cfg.DB))
	if err != nil {
		return nil, err
	}
	return &RedisStore{client: &client, ttl: cfg.SessionTTL}, nil
}

func Key(sessionID string) string {
	return fmt.Sprintf("%s:%s", flow.StorageKey, sessionID)
}

func (store *RedisStore) Load(ctx context.Context, sessionID string) (*flow.State, error) {
	var state flow.State
	err := store.client.GetDoc(ctx, Key(sessionID), &state)
	if errors.Is(err, redis.ErrNotFound) {
		return nil, flow.ErrStateNotFound
	}
	if err != nil {
		return nil, err
	}
	return &state, nil
}

// Save writes the state under the session lock so concurrent writers never
// interleave partial records.
func (store *RedisStore) Save(ctx context.Context, sessionID string, state *flow.State) (err error) {
	key := Key(sessionID)
	releaseLock, err := store.client.Lock(ctx, key)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = releaseLock()
			return
		}
		err = releaseLock()
	}()

	return store.client.SaveDoc(ctx, key, state, store.ttl)
}

func (store *RedisStore) Delete(ctx context.Context, sessionID string) error {
	return store.client.Delete(ctx, Key(sessionID))
}

func (store *RedisStore) Close() error {
	return store.client.Close()
}
