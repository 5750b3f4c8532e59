package config

import (
	"os"
	"strconv"
)

type RedisSettings struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type CommanderConfig struct {
	ServerAddr   string
	DatabasePath string

	AdminUsername    string
	AdminPassword    string
	OperatorUsername string
	OperatorPassword string

	// Redis is nil when no REDIS_HOST is configured; the service then
	// runs without event publication.
	Redis *RedisSettings
}

// LoadCommanderConfig reads commander config from environment or returns defaults
func LoadCommanderConfig() (*CommanderConfig, error) {
	cfg := &CommanderConfig{
		ServerAddr:       envOrDefault("COMMANDER_ADDR", ":8080"),
		DatabasePath:     envOrDefault("DATABASE_PATH", "./data/bots.db"),
		AdminUsername:    envOrDefault("ADMIN_USER", "admin"),
		AdminPassword:    envOrDefault("ADMIN_PASSWORD", "password"),
		OperatorUsername: envOrDefault("OPERATOR_USER", "operator"),
		OperatorPassword: envOrDefault("OPERATOR_PASSWORD", "operatorpass"),
	}

	if host := os.Getenv("REDIS_HOST"); host != "" {
		port := 6379
		if v := os.Getenv("REDIS_PORT"); v != "" {
			if i, err := strconv.Atoi(v); err == nil {
				port = i
			}
		}
		db := 0
		if v := os.Getenv("REDIS_DB"); v != "" {
			if i, err := strconv.Atoi(v); err == nil {
				db = i
			}
		}
		cfg.Redis = &RedisSettings{
			Host:     host,
			Port:     port,
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       db,
		}
	}

	return cfg, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
