package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Simplici0/signquote/internal/ratecard"
)

const (
	defaultDBPath = "./dev.db"
	defaultPort   = "8080"
	defaultEnv    = "development"
)

// Config holds application configuration sourced from environment variables.
type Config struct {
	AppEnv   string
	DBPath   string
	Port     string
	LogLevel string

	// CatalogPath points at a YAML option catalog. Empty means the built-in
	// default catalog.
	CatalogPath string

	// SeedDefaultRateCard imports and activates the bundled rate card on
	// startup when no pricing set is active.
	SeedDefaultRateCard bool

	warnings []string
}

// Load reads environment variables, after filling unset ones from a .env
// file in the working directory, and returns a populated Config.
func Load() Config {
	_, dotEnvErr := loadDotEnv(".env")

	cfg := Config{
		AppEnv:              os.Getenv("APP_ENV"),
		DBPath:              os.Getenv("DB_PATH"),
		Port:                os.Getenv("PORT"),
		LogLevel:            strings.ToLower(os.Getenv("LOG_LEVEL")),
		CatalogPath:         os.Getenv("CATALOG_PATH"),
		SeedDefaultRateCard: true,
	}

	if dotEnvErr != nil {
		cfg.warn("ignoring .env: %v", dotEnvErr)
	}
	if cfg.AppEnv == "" {
		cfg.AppEnv = defaultEnv
	}
	if cfg.DBPath == "" {
		cfg.DBPath = defaultDBPath
	}
	if cfg.Port == "" {
		cfg.Port = defaultPort
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	if raw := os.Getenv("SEED_DEFAULT_RATECARD"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			cfg.warn("SEED_DEFAULT_RATECARD=%q is not a boolean, seeding stays enabled", raw)
		} else {
			cfg.SeedDefaultRateCard = v
		}
	}
	if _, err := zapcore.ParseLevel(cfg.LogLevel); err != nil {
		cfg.warn("LOG_LEVEL=%q is not a log level, using info", cfg.LogLevel)
		cfg.LogLevel = "info"
	}

	return cfg
}

func (c *Config) warn(format string, args ...any) {
	c.warnings = append(c.warnings, fmt.Sprintf(format, args...))
}

// Warnings lists problems found while loading. They are reported once a
// logger exists.
func (c Config) Warnings() []string {
	return c.warnings
}

// IsDev reports whether the app runs in a local development environment.
func (c Config) IsDev() bool {
	switch c.AppEnv {
	case "dev", "development", "local":
		return true
	}
	return false
}

// Logger builds the zap logger for this configuration: development encoding
// locally, JSON in production.
func (c Config) Logger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		level = zapcore.InfoLevel
	}

	zc := zap.NewProductionConfig()
	if c.IsDev() {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)

	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}

// LoadCatalog reads the option catalog at path, or returns the default
// catalog when path is empty.
func LoadCatalog(path string) (ratecard.Catalog, error) {
	if path == "" {
		return ratecard.DefaultCatalog(), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return ratecard.Catalog{}, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()

	catalog, err := ratecard.ParseCatalog(f)
	if err != nil {
		return ratecard.Catalog{}, fmt.Errorf("load catalog %s: %w", path, err)
	}
	return catalog, nil
}
