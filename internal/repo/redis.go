package repo

import (
	"Go_PanStore/config"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Redis is optional: nil when REDIS_HOST is unset.
var Redis *redis.Client

// ErrLockBusy is returned when another holder owns the lock.
var ErrLockBusy = errors.New("lock is busy")

type RedisLock struct {
	rdb   *redis.Client
	key   string
	token string
	ttl   time.Duration
}

// InitRedis initializes the Redis client when one is configured.
func InitRedis() {
	if config.AppConfig.RedisHost == "" {
		log.Info().Msg("redis not configured, sweep lock and list cache disabled")
		return
	}
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", config.AppConfig.RedisHost, config.AppConfig.RedisPort),
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisDB,
	})
	if _, err := client.Ping(context.Background()).Result(); err != nil {
		log.Fatal().Err(err).Msg("init redis failed")
	}
	log.Info().Msg("init redis success")
	Redis = client
}

// NewRedisLock creates a Redis lock helper.
func NewRedisLock(rdb *redis.Client, key string, ttl time.Duration) *RedisLock {
	return &RedisLock{
		rdb: rdb,
		key: key,
		ttl: ttl,
	}
}

// Lock acquires a Redis-based lock.
func (l *RedisLock) Lock(ctx context.Context) error {
	token := uuid.NewString()
	ok, err := l.rdb.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrLockBusy
	}
	l.token = token
	return nil
}

var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Unlock releases a Redis-based lock.
func (l *RedisLock) Unlock(ctx context.Context) error {
	if l.token == "" {
		return nil
	}
	_, err := unlockScript.Run(
		ctx,
		l.rdb,
		[]string{l.key},
		l.token,
	).Result()
	l.token = ""
	return err
}
