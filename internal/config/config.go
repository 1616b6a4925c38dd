package config

import (
	"errors"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultThemePath = "themes/standard/config.json"
	DefaultOutputDir = "output"
	DefaultHTTPAddr  = ":8080"
)

type AppConfig struct {
	ThemePath         string
	FallbackThemePath string
	OutputDir         string
	Workers           int
	Extensions        []string

	RedisURL      string
	CacheTTL      time.Duration
	CachePrefix   string
	DatabaseURL   string
	HTTPAddr      string
	MessagesDir   string
	MessageLocale string
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		ThemePath:     DefaultThemePath,
		OutputDir:     DefaultOutputDir,
		Workers:       runtime.NumCPU(),
		Extensions:    []string{".pgn"},
		CacheTTL:      time.Hour,
		HTTPAddr:      DefaultHTTPAddr,
		MessageLocale: "en",
	}

	if v := strings.TrimSpace(os.Getenv("THEME_PATH")); v != "" {
		cfg.ThemePath = v
	}
	cfg.FallbackThemePath = strings.TrimSpace(os.Getenv("FALLBACK_THEME_PATH"))
	if v := strings.TrimSpace(os.Getenv("OUTPUT_DIR")); v != "" {
		cfg.OutputDir = v
	}
	if v := strings.TrimSpace(os.Getenv("RENDER_WORKERS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Workers = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("RENDER_EXTENSIONS")); v != "" {
		var exts []string
		for _, p := range strings.Split(v, ",") {
			s := strings.TrimSpace(p)
			if s == "" {
				continue
			}
			if !strings.HasPrefix(s, ".") {
				s = "." + s
			}
			exts = append(exts, strings.ToLower(s))
		}
		if len(exts) > 0 {
			cfg.Extensions = exts
		}
	}

	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	if v := strings.TrimSpace(os.Getenv("RENDER_CACHE_TTL")); v != "" { // seconds
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.CacheTTL = time.Duration(n) * time.Second
		}
	}
	cfg.CachePrefix = strings.TrimSpace(os.Getenv("RENDER_CACHE_PREFIX"))
	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))

	if v := strings.TrimSpace(os.Getenv("HTTP_ADDR")); v != "" {
		cfg.HTTPAddr = v
	}
	cfg.MessagesDir = strings.TrimSpace(os.Getenv("MESSAGES_DIR"))
	if v := strings.TrimSpace(os.Getenv("MESSAGE_LOCALE")); v != "" {
		cfg.MessageLocale = v
	}

	if cfg.FallbackThemePath != "" && cfg.FallbackThemePath == cfg.ThemePath {
		return nil, errors.New("FALLBACK_THEME_PATH must differ from THEME_PATH")
	}

	return cfg, nil
}
