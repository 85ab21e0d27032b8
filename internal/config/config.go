package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

type Config struct {
	WCLClientID     string
	WCLClientSecret string
	WCLAPIURL       string
	WCLTokenURL     string
	DBPath          string
	ServerPort      string
	LogLevel        string
}

func Load(logger zerolog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug().Msg(".env file not found, using environment variables or defaults")
	}

	cfg := &Config{
		WCLClientID:     getEnv("WCL_CLIENT_ID", ""),
		WCLClientSecret: getEnv("WCL_CLIENT_SECRET", ""),
		WCLAPIURL:       getEnv("WCL_API_URL", "https://www.warcraftlogs.com/api/v2/client"),
		WCLTokenURL:     getEnv("WCL_TOKEN_URL", "https://www.warcraftlogs.com/oauth/token"),
		DBPath:          getEnv("DB_PATH", "mchammer.db"),
		ServerPort:      getEnv("SERVER_PORT", "8080"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
	}

	if cfg.WCLClientID == "" {
		return nil, fmt.Errorf("WCL_CLIENT_ID is required")
	}
	if cfg.WCLClientSecret == "" {
		return nil, fmt.Errorf("WCL_CLIENT_SECRET is required")
	}

	logger.Info().
		Str("api_url", cfg.WCLAPIURL).
		Str("db_path", cfg.DBPath).
		Str("server_port", cfg.ServerPort).
		Str("log_level", cfg.LogLevel).
		Msg("configuration loaded")

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

var Module = fx.Provide(Load)
