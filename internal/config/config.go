package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/samber/lo"
)

type AppConfig struct {
	HTTPAddr string
	WSAddr   string
	// WSOrigins are host patterns allowed in the Origin header of a
	// websocket handshake; empty means same-host only.
	WSOrigins []string

	RedisURL    string
	DatabaseURL string

	SessionTTLSec  int
	GameTTLSec     int
	WriteTimeoutMs int

	MessagesDir    string
	BoardImageSize int
}

// Load reads the environment. A .env file in the working directory, or the
// one named by ENV_FILE, is applied first without overriding set variables.
func Load() (*AppConfig, error) {
	envFile := strings.TrimSpace(os.Getenv("ENV_FILE"))
	if envFile == "" {
		envFile = ".env"
	}
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			return nil, err
		}
	}

	cfg := &AppConfig{
		HTTPAddr:       ":8080",
		WSAddr:         ":8081",
		SessionTTLSec:  86400,
		WriteTimeoutMs: 5000,
		BoardImageSize: 480,
	}

	if v := strings.TrimSpace(os.Getenv("HTTP_ADDR")); v != "" {
		cfg.HTTPAddr = v
	}
	if v := strings.TrimSpace(os.Getenv("WS_ADDR")); v != "" {
		cfg.WSAddr = v
	}

	if v := strings.TrimSpace(os.Getenv("WS_ORIGINS")); v != "" {
		cfg.WSOrigins = lo.Compact(lo.Map(strings.Split(v, ","), func(s string, _ int) string { return strings.TrimSpace(s) }))
	}

	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	cfg.MessagesDir = strings.TrimSpace(os.Getenv("MESSAGES_DIR"))

	var err error
	if cfg.SessionTTLSec, err = positiveInt("SESSION_TTL", cfg.SessionTTLSec); err != nil {
		return nil, err
	}
	if v := strings.TrimSpace(os.Getenv("GAME_TTL")); v != "" { // 0 keeps games forever
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, errors.New("GAME_TTL must be a non-negative integer")
		}
		cfg.GameTTLSec = n
	}
	if cfg.WriteTimeoutMs, err = positiveInt("WS_WRITE_TIMEOUT_MS", cfg.WriteTimeoutMs); err != nil {
		return nil, err
	}
	if cfg.BoardImageSize, err = positiveInt("BOARD_IMAGE_SIZE", cfg.BoardImageSize); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == cfg.WSAddr {
		return nil, errors.New("HTTP_ADDR and WS_ADDR must differ")
	}
	return cfg, nil
}

func positiveInt(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, errors.New(key + " must be a positive integer")
	}
	return n, nil
}

func (c *AppConfig) SessionTTL() time.Duration { return time.Duration(c.SessionTTLSec) * time.Second }
func (c *AppConfig) GameTTL() time.Duration    { return time.Duration(c.GameTTLSec) * time.Second }
func (c *AppConfig) WriteTimeout() time.Duration {
	return time.Duration(c.WriteTimeoutMs) * time.Millisecond
}
