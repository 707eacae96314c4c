package config

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

type Config struct {
	ClientID     string
	ClientSecret string
	DBPath       string
	ServerPort   string
	LogLevel     string
	Region       string
}

// Load reads configuration from the environment. FFLogs credentials may be
// absent here; they can also be supplied at runtime through the settings
// endpoint and are then persisted in the database.
func Load(logger zerolog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug().Msg(".env file not found, using environment variables or defaults")
	}

	cfg := &Config{
		ClientID:     getEnv("FFLOGS_CLIENT_ID", ""),
		ClientSecret: getEnv("FFLOGS_CLIENT_SECRET", ""),
		DBPath:       getEnv("DB_PATH", "raidrecord.db"),
		ServerPort:   getEnv("SERVER_PORT", "8080"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		Region:       getEnv("REGION", "KR"),
	}

	logger.Info().
		Str("db_path", cfg.DBPath).
		Str("server_port", cfg.ServerPort).
		Str("log_level", cfg.LogLevel).
		Str("region", cfg.Region).
		Bool("credentials_from_env", cfg.ClientID != "").
		Msg("configuration loaded")

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
