package config

import "os"

type Config struct {
	Port   string
	AppURL string // allowed cross-origin URL for the browser client
}

func Load() Config {
	cfg := Config{
		Port:   getEnv("PORT", "5000"),
		AppURL: getEnv("APP_URL", "http://localhost:3000"),
	}
	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
