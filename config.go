package main

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Addr            string
	PublicBaseURL   string
	DBPath          string
	DisconnectGrace time.Duration
	TickInterval    time.Duration
}

func LoadConfig() Config {
	return Config{
		Addr:            ":" + envString("PORT", "8080"),
		PublicBaseURL:   envString("PUBLIC_BASE_URL", "http://localhost:5173"),
		DBPath:          envString("DB_PATH", "data/connectfour.db"),
		DisconnectGrace: time.Duration(envInt("DISCONNECT_TIMEOUT_SECONDS", 60)) * time.Second,
		TickInterval:    time.Duration(envInt("TICK_INTERVAL_MS", 250)) * time.Millisecond,
	}
}

func envString(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}
