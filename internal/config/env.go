package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// ApplyEnv loads a .env file when present and lets environment variables
// override the connection settings and secrets of c.
func (c *Config) ApplyEnv() {
	if err := godotenv.Load(); err != nil {
		log.Println("Config: No .env file found, using system env vars")
	}

	c.Database.Type = getEnv("DB_TYPE", c.Database.Type)
	switch c.Database.Type {
	case "postgres":
		p := &c.Database.Postgres
		p.Host = getEnv("DB_HOST", p.Host)
		p.Port = getEnvInt("DB_PORT", p.Port)
		p.User = getEnv("DB_USER", p.User)
		p.Password = getEnv("DB_PASSWORD", p.Password)
		p.Database = getEnv("DB_NAME", p.Database)
		p.SSLMode = getEnv("DB_SSLMODE", p.SSLMode)
	default:
		m := &c.Database.MySQL
		m.Host = getEnv("DB_HOST", m.Host)
		m.Port = getEnvInt("DB_PORT", m.Port)
		m.User = getEnv("DB_USER", m.User)
		m.Password = getEnv("DB_PASSWORD", m.Password)
		m.Database = getEnv("DB_NAME", m.Database)
	}

	c.State.Backend = getEnv("STATE_BACKEND", c.State.Backend)
	c.State.RedisURL = getEnv("REDIS_URL", c.State.RedisURL)

	c.Search.Meilisearch.Host = getEnv("MEILISEARCH_HOST", c.Search.Meilisearch.Host)
	c.Search.Meilisearch.APIKey = getEnv("MEILISEARCH_KEY", c.Search.Meilisearch.APIKey)

	c.Admin.Port = getEnv("PORT", c.Admin.Port)
	c.Admin.Token = getEnv("ADMIN_TOKEN", c.Admin.Token)
	c.SiteURL = getEnv("SITE_URL", c.SiteURL)
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}
