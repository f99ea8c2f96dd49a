package config

import (
	"fmt"
	"os"
	"time"
)

type Config struct {
	DBFile          string
	APIAddr         string
	AdminAddr       string
	BaseURL         string
	AdminPassword   string
	TokenExpiry     time.Duration
	DedupWindow     time.Duration
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	VAPIDSubscriber string
}

func Load(cliMode bool) (*Config, error) {
	tokenExpiry, err := time.ParseDuration(getEnv("TOKEN_EXPIRY", "24h"))
	if err != nil {
		return nil, fmt.Errorf("invalid TOKEN_EXPIRY: %w", err)
	}

	dedupWindow, err := time.ParseDuration(getEnv("DEDUP_WINDOW", "5m"))
	if err != nil {
		return nil, fmt.Errorf("invalid DEDUP_WINDOW: %w", err)
	}

	cfg := &Config{
		DBFile:          getEnv("CHAT_DB", "chat.db"),
		APIAddr:         getEnv("API_ADDR", ":8080"),
		AdminAddr:       getEnv("ADMIN_ADDR", "localhost:8081"),
		BaseURL:         getEnv("BASE_URL", "http://localhost:8080"),
		AdminPassword:   os.Getenv("ADMIN_PASSWORD"),
		TokenExpiry:     tokenExpiry,
		DedupWindow:     dedupWindow,
		VAPIDPublicKey:  os.Getenv("VAPID_PUBLIC_KEY"),
		VAPIDPrivateKey: os.Getenv("VAPID_PRIVATE_KEY"),
		VAPIDSubscriber: getEnv("VAPID_SUBSCRIBER", "mailto:admin@localhost"),
	}

	if err := cfg.Validate(cliMode); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate(cliMode bool) error {
	if c.AdminPassword == "" && !cliMode {
		return fmt.Errorf("ADMIN_PASSWORD is required")
	}

	if c.TokenExpiry <= 0 {
		return fmt.Errorf("TOKEN_EXPIRY must be greater than 0")
	}

	if c.DedupWindow <= 0 {
		return fmt.Errorf("DEDUP_WINDOW must be greater than 0")
	}

	// Web push is optional, but a half-configured key pair is a mistake.
	if (c.VAPIDPublicKey == "") != (c.VAPIDPrivateKey == "") {
		return fmt.Errorf("VAPID_PUBLIC_KEY and VAPID_PRIVATE_KEY must be set together")
	}

	return nil
}

func (c *Config) PushEnabled() bool {
	return c.VAPIDPublicKey != "" && c.VAPIDPrivateKey != ""
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
