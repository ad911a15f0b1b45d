package redislock

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/Spok95/stone-stock/internal/importer"
)

const Key = "stock:import:lock"

// снимаем только свой ключ
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Guard: флаг импорта, общий для всех экземпляров сервиса.
type Guard struct {
	rdb *redis.Client
	ttl time.Duration
	log *slog.Logger
}

func New(rdb *redis.Client, ttl time.Duration, log *slog.Logger) *Guard {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Guard{rdb: rdb, ttl: ttl, log: log}
}

func Connect(ctx context.Context, addr, password string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return rdb, nil
}

func (g *Guard) Acquire(ctx context.Context) (func(), error) {
	token := uuid.NewString()
	ok, err := g.rdb.SetNX(ctx, Key, token, g.ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, importer.ErrImportInProgress
	}
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := releaseScript.Run(ctx, g.rdb, []string{Key}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
			g.log.Error("import lock release failed", "err", err)
		}
	}, nil
}
