package calendar

import (
	"log/slog"
	"strings"
	"time"

	"github.com/md-rashed-zaman/billboardrent/libs/config"
	"github.com/md-rashed-zaman/billboardrent/services/rental-service/internal/storage"
	"github.com/redis/go-redis/v9"
)

// CacheConfig selects the redis instance in front of the calendar. An empty
// Addr disables caching.
type CacheConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

func CacheConfigFromEnv() (CacheConfig, error) {
	db, err := config.Int("REDIS_DB", 0)
	if err != nil {
		return CacheConfig{}, err
	}
	ttl, err := config.Duration("CALENDAR_CACHE_TTL", 10*time.Minute)
	if err != nil {
		return CacheConfig{}, err
	}
	return CacheConfig{
		Addr:     strings.TrimSpace(config.String("REDIS_ADDR", "")),
		Password: config.String("REDIS_PASSWORD", ""),
		DB:       db,
		TTL:      ttl,
	}, nil
}

// WithRedisCache fronts repo with a CachedRepository when cfg.Addr is set.
// Every process that writes bi-weeks must go through it so the version bump
// reaches readers. The returned close func is never nil.
func WithRedisCache(repo storage.CalendarRepository, cfg CacheConfig, logger *slog.Logger) (storage.CalendarRepository, func()) {
	if cfg.Addr == "" {
		return repo, func() {}
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	logger.Info("calendar cache enabled (redis)", "redis_addr", cfg.Addr, "ttl", cfg.TTL)
	return NewCachedRepository(repo, rdb, cfg.TTL, logger), func() { _ = rdb.Close() }
}
