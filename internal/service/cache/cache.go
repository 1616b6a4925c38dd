package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	defaultTTL    = time.Hour
	defaultPrefix = "render:"
)

type CacheConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	TTL      time.Duration
	Prefix   string
}

// CacheService stores encoded board images in Redis.
type CacheService struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
	logger *zap.Logger
}

func NewCacheService(cfg CacheConfig, logger *zap.Logger) (*CacheService, error) {
	if strings.TrimSpace(cfg.Host) == "" {
		return nil, fmt.Errorf("redis host is required")
	}
	port := cfg.Port
	if port <= 0 {
		port = 6379
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Host + ":" + strconv.Itoa(port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewCacheServiceFromClient(rdb, cfg.TTL, cfg.Prefix, logger), nil
}

func NewCacheServiceFromClient(rdb *redis.Client, ttl time.Duration, prefix string, logger *zap.Logger) *CacheService {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if strings.TrimSpace(prefix) == "" {
		prefix = defaultPrefix
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheService{rdb: rdb, ttl: ttl, prefix: prefix, logger: logger}
}

// Get returns the cached bytes for key. A miss is (nil, false, nil).
func (c *CacheService) Get(ctx context.Context, key string) ([]byte, bool, error) {
	raw, err := c.rdb.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache get %s: %w", key, err)
	}
	return raw, true, nil
}

func (c *CacheService) Set(ctx context.Context, key string, data []byte) error {
	if err := c.rdb.Set(ctx, c.prefix+key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	c.logger.Debug("render cached", zap.String("key", key), zap.Int("bytes", len(data)))
	return nil
}

func (c *CacheService) Close() error {
	if c == nil || c.rdb == nil {
		return nil
	}
	return c.rdb.Close()
}
