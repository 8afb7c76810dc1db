package config

import (
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	Addr        string
	CatalogPath string
	CatalogDSN  string // when set, the catalog is read from Postgres
}

// Load reads .env if present, then the environment.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Addr:        envOr("ADDR", ":8080"),
		CatalogPath: envOr("CATALOG_PATH", "data/cards.json"),
		CatalogDSN:  os.Getenv("CATALOG_DSN"),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
