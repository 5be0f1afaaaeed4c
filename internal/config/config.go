// Package config reads RECICLAMT_* settings from the environment and an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const prefix = "RECICLAMT_"

type Config struct {
	Port        string
	DatabaseURL string
	BaseURL     string

	LogLevel string
	LogFile  string

	// RedisURL selects the shared balance cache; empty means in-process LRU.
	RedisURL  string
	CacheSize int
	CacheTTL  time.Duration

	RedemptionCodeFormat string
	AdminEmails          []string
	SecureCookies        bool

	PostmarkToken string
	FromEmail     string
}

// Load reads .env files (if present) into the process environment without
// overriding variables that are already set, then builds a Config.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}
	return FromEnv(os.LookupEnv)
}

// FromEnv builds a Config from lookup, applying defaults.
func FromEnv(lookup func(string) (string, bool)) (Config, error) {
	get := func(key, def string) string {
		if v, ok := lookup(prefix + key); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
		return def
	}

	cfg := Config{
		Port:                 get("PORT", "8080"),
		DatabaseURL:          get("DATABASE_URL", "reciclamt.db"),
		LogLevel:             get("LOG_LEVEL", "info"),
		LogFile:              get("LOG_FILE", ""),
		RedisURL:             get("REDIS_URL", ""),
		RedemptionCodeFormat: get("REDEMPTION_CODE", "random"),
		PostmarkToken:        get("POSTMARK_TOKEN", ""),
		FromEmail:            get("FROM_EMAIL", ""),
	}
	cfg.BaseURL = get("BASE_URL", "http://localhost:"+cfg.Port)

	var err error
	if cfg.CacheSize, err = strconv.Atoi(get("CACHE_SIZE", "1024")); err != nil || cfg.CacheSize <= 0 {
		return Config{}, fmt.Errorf("%sCACHE_SIZE must be a positive integer", prefix)
	}
	if cfg.CacheTTL, err = time.ParseDuration(get("CACHE_TTL", "5m")); err != nil || cfg.CacheTTL <= 0 {
		return Config{}, fmt.Errorf("%sCACHE_TTL must be a positive duration", prefix)
	}
	if cfg.SecureCookies, err = strconv.ParseBool(get("SECURE_COOKIES", "false")); err != nil {
		return Config{}, fmt.Errorf("%sSECURE_COOKIES: %w", prefix, err)
	}

	for _, e := range strings.Split(get("ADMIN_EMAILS", ""), ",") {
		if e = strings.ToLower(strings.TrimSpace(e)); e != "" {
			cfg.AdminEmails = append(cfg.AdminEmails, e)
		}
	}

	switch strings.ToLower(cfg.RedemptionCodeFormat) {
	case "random", "legacy":
	default:
		return Config{}, fmt.Errorf("%sREDEMPTION_CODE must be random or legacy, got %q", prefix, cfg.RedemptionCodeFormat)
	}

	return cfg, nil
}

// IsAdminEmail reports whether email is in the configured admin list.
func (c Config) IsAdminEmail(email string) bool {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return false
	}
	for _, e := range c.AdminEmails {
		if e == email {
			return true
		}
	}
	return false
}
