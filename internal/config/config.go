package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/mmulqu/biome/internal/constants"
)

type Config struct {
	DBPath           string
	ServerPort       string
	LogLevel         string
	INatBaseURL      string
	INatUserAgent    string
	ViewportCacheTTL time.Duration
}

func Load(logger zerolog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug().Msg(".env file not found, using environment variables or defaults")
	}

	cfg := &Config{
		DBPath:           getEnv("DB_PATH", "biome.db"),
		ServerPort:       getEnv("SERVER_PORT", "8080"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		INatBaseURL:      getEnv("INAT_BASE_URL", "https://api.inaturalist.org/v1"),
		INatUserAgent:    getEnv("INAT_USER_AGENT", "biome-tracker"),
		ViewportCacheTTL: constants.ViewportCacheTTL,
	}

	logger.Info().
		Str("db_path", cfg.DBPath).
		Str("server_port", cfg.ServerPort).
		Str("log_level", cfg.LogLevel).
		Str("inat_base_url", cfg.INatBaseURL).
		Dur("viewport_cache_ttl", cfg.ViewportCacheTTL).
		Msg("configuration loaded")

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
