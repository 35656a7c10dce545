package locks

import (
	"github.com/redis/go-redis/v9"
	"github.com/responsiv/pay/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func NewLocker(cfg config.Config, log *zap.Logger) Locker {
	if cfg.RedisAddr == "" {
		return NewKeyedMutex()
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	log.Info("using redis locker", zap.String("addr", cfg.RedisAddr))
	return NewRedisLocker(client)
}

var Module = fx.Module("locks",
	fx.Provide(NewLocker),
)
