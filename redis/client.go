package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/bsm/redislock"
	"github.com/go-redis/redis/v8"
	"github.com/kelseyhightower/envconfig"
	"time"
)

type DB int
type ReleaseLock func() error

var ErrNotFound = errors.New("redis key not found")

type Client struct {
	client         redis.UniversalClient
	lockExpiration time.Duration
}

type Config struct {
	LockExpirationSeconds   int     `envconfig:"INTAKE_REDIS_LOCK_EXPIRATION" default:"3"`
	Host                    string  `envconfig:"INTAKE_REDIS_HOST" required:"true"`
	Port                    string  `envconfig:"INTAKE_REDIS_PORT" default:"6379"`
	HASentinelPort          string  `envconfig:"INTAKE_REDIS_HA_SENTINEL_PORT" default:"26379"`
	HASentinelMasterName    string  `envconfig:"INTAKE_REDIS_HA_MASTER_NAME" default:"mymaster"`
	Password                string  `envconfig:"INTAKE_REDIS_AUTH_PASSWORD" default:"0"`
	AuthRequired            bool    `envconfig:"INTAKE_REDIS_AUTH_REQUIRED" default:"false"`
	HAMode                  bool    `envconfig:"INTAKE_REDIS_HA_MODE" default:"false"`
	HASentinelSocketTimeout float32 `envconfig:"INTAKE_REDIS_SOCKET_TIMEOUT" default:"0.5"`
}

func NewClient(db DB) (Client, error) {
	cfg, err := ReadEnvironment()
	if err != nil {
		return Client{}, err
	}
	var client redis.UniversalClient
	if cfg.HAMode {
		client = CreateFailoverClient(cfg, db)
	} else {
		client = CreateClient(cfg, db)
	}
	return Client{
		client:         client,
		lockExpiration: time.Duration(cfg.LockExpirationSeconds) * time.Second,
	}, nil
}

func CreateFailoverClient(cfg *Config, db DB) *redis.ClusterClient {
	addr := fmt.Sprintf("%s:%s", cfg.Host, cfg.HASentinelPort)
	timeout := time.Duration(float64(cfg.HASentinelSocketTimeout) * float64(time.Second))
	options := redis.FailoverOptions{
		SentinelAddrs: []string{addr},
		ReadTimeout:   timeout,
		WriteTimeout:  timeout,
		MaxRetries:    6,
		DB:            int(db),
		MasterName:    cfg.HASentinelMasterName,
	}
	if cfg.AuthRequired {
		options.Password = cfg.Password
	}
	return redis.NewFailoverClusterClient(&options)
}

func CreateClient(cfg *Config, db DB) *redis.Client {
	addr := fmt.Sprintf("%s:%s", cfg.Host, cfg.Port)
	options := redis.Options{
		Addr:       addr,
		MaxRetries: 6,
		DB:         int(db),
	}
	if cfg.AuthRequired {
		options.Password = cfg.Password
	}
	return redis.NewClient(&options)
}

// GetDoc decodes the JSON document stored under redisKey into doc.
func (client *Client) GetDoc(ctx context.Context, redisKey string, doc interface{}) error {
	b, err := client.client.Get(ctx, redisKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get %s: %w", redisKey, err)
	}
	if err := json.Unmarshal(b, doc); err != nil {
		return fmt.Errorf("decoding %s: %w", redisKey, err)
	}
	return nil
}

// SaveDoc stores doc as JSON. A zero ttl keeps the key forever.
func (client *Client) SaveDoc(ctx context.Context, redisKey string, doc interface{}, ttl time.Duration) error {
	b, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	if err := client.client.Set(ctx, redisKey, b, ttl).Err(); err != nil {
		return fmt.Errorf("set %s: %w", redisKey, err)
	}
	return nil
}

func (client *Client) Delete(ctx context.Context, redisKey string) error {
	return client.client.Del(ctx, redisKey).Err()
}

func (client *Client) Lock(ctx context.Context, redisKey string) (ReleaseLock, error) {
	lockCl := redislock.New(client.client)
	str := redislock.LimitRetry(redislock.LinearBackoff(100*time.Millisecond), 20)
	lockKey := LockKey(redisKey)
	lock, err := lockCl.Obtain(ctx, lockKey, client.lockExpiration, &redislock.Options{RetryStrategy: str})
	if err != nil {
		return nil, fmt.Errorf("obtaining %s: %w", lockKey, err)
	}
	return func() error {
		return lock.Release(context.Background())
	}, nil
}

func LockKey(redisKey string) string {
	return fmt.Sprintf("lock:%s", redisKey)
}

func (client *Client) Ping(ctx context.Context) error {
	return client.client.Ping(ctx).Err()
}

func (client *Client) Close() error {
	return client.client.Close()
}

func ReadEnvironment() (*Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}
