package renderbuilder

import (
    "context"
    "database/sql"
    "fmt"
    "net/url"
    "strconv"
    "strings"
    "time"

    _ "github.com/lib/pq"
    "github.com/park285/chess-render/internal/config"
    "github.com/park285/chess-render/internal/service/cache"
    svcchess "github.com/park285/chess-render/internal/service/chess"
    "github.com/park285/chess-render/internal/theme"
    "go.uber.org/zap"
)

type Deps struct {
    Service  *svcchess.Service
    Geometry *theme.Geometry
    Cache    *cache.CacheService
    Repo     svcchess.Repository

    db *sql.DB
}

// Close releases the Redis client and the Postgres pool when they were opened.
func (d *Deps) Close() error {
    if d == nil {
        return nil
    }
    var firstErr error
    if d.Cache != nil {
        if err := d.Cache.Close(); err != nil {
            firstErr = err
        }
    }
    if d.db != nil {
        if err := d.db.Close(); err != nil && firstErr == nil {
            firstErr = err
        }
    }
    return firstErr
}

func New(ctx context.Context, cfg *config.AppConfig, logger *zap.Logger) (*Deps, error) {
    if cfg == nil {
        return nil, fmt.Errorf("nil config")
    }
    if logger == nil {
        logger = zap.NewNop()
    }

    // Theme (fallback is explicit policy)
    geometry, err := theme.LoadWithFallback(cfg.ThemePath, theme.FallbackPolicy{Path: cfg.FallbackThemePath}, logger)
    if err != nil {
        return nil, fmt.Errorf("load theme: %w", err)
    }
    logger.Info("theme loaded", zap.String("theme", geometry.String()))

    deps := &Deps{Geometry: geometry}

    // Cache (Redis optional)
    if strings.TrimSpace(cfg.RedisURL) != "" {
        cconf, perr := parseRedisURL(cfg.RedisURL)
        if perr != nil {
            return nil, fmt.Errorf("parse redis url: %w", perr)
        }
        cconf.TTL = cfg.CacheTTL
        cconf.Prefix = cfg.CachePrefix
        deps.Cache, err = cache.NewCacheService(*cconf, logger)
        if err != nil {
            return nil, fmt.Errorf("init cache: %w", err)
        }
    }

    // Ledger: Postgres when configured, otherwise in memory
    if strings.TrimSpace(cfg.DatabaseURL) != "" {
        db, err := openPostgres(ctx, cfg.DatabaseURL)
        if err != nil {
            _ = deps.Close()
            return nil, err
        }
        deps.db = db
        deps.Repo = svcchess.NewRepository(db)
    } else {
        deps.Repo = svcchess.NewMemoryRepository()
    }

    svcCfg := svcchess.Config{
        Workers:    cfg.Workers,
        Extensions: append([]string(nil), cfg.Extensions...),
    }

    var renderCache svcchess.RenderCache
    if deps.Cache != nil {
        renderCache = deps.Cache
    }
    service, err := svcchess.NewService(svcchess.NewCompositor(), geometry, svcchess.NewFileSink(cfg.OutputDir), renderCache, deps.Repo, svcCfg, logger)
    if err != nil {
        _ = deps.Close()
        return nil, err
    }
    deps.Service = service
    return deps, nil
}

func openPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
    db, err := sql.Open("postgres", dsn)
    if err != nil {
        return nil, fmt.Errorf("open postgres: %w", err)
    }
    // basic pool settings
    db.SetMaxOpenConns(8)
    db.SetMaxIdleConns(4)
    db.SetConnMaxLifetime(30 * time.Minute)

    pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
    defer cancel()
    if err := db.PingContext(pctx); err != nil {
        _ = db.Close()
        return nil, fmt.Errorf("ping postgres: %w", err)
    }
    if err := svcchess.EnsureSchema(pctx, db); err != nil {
        _ = db.Close()
        return nil, err
    }
    return db, nil
}

func parseRedisURL(raw string) (*cache.CacheConfig, error) {
    u, err := url.Parse(raw)
    if err != nil {
        return nil, err
    }
    if u.Scheme != "redis" && u.Scheme != "rediss" {
        return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
    }
    host := u.Hostname()
    portStr := u.Port()
    if portStr == "" {
        portStr = "6379"
    }
    port, err := strconv.Atoi(portStr)
    if err != nil {
        return nil, err
    }
    db := 0
    if u.Path != "" {
        p := strings.TrimPrefix(u.Path, "/")
        if p != "" {
            if n, err := strconv.Atoi(p); err == nil {
                db = n
            }
        }
    }
    pass, _ := u.User.Password()
    return &cache.CacheConfig{Host: host, Port: port, Password: pass, DB: db}, nil
}
