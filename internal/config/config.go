package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config is the process configuration, read from the environment with
// optional .env support.
type Config struct {
	CoordinatorURL      string
	CoordinatorUser     string
	CoordinatorPassword string // may be stored "enc:"-prefixed, see SecretKey

	HTTPAddr        string
	Workers         int64
	DefaultWordlist string

	MaxRetries  int
	BackoffBase time.Duration

	PollInterval time.Duration
	MaxPolls     int

	DBPath     string
	AgentImage string
}

// Load reads the configuration. A .env file is honored when present;
// coordinator password values carrying the "enc:" prefix are decrypted via
// the secret key.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		CoordinatorURL:      getEnv("HASHRELAY_COORDINATOR_URL", "http://localhost:8080"),
		CoordinatorUser:     getEnv("HASHRELAY_COORDINATOR_USER", ""),
		CoordinatorPassword: getEnv("HASHRELAY_COORDINATOR_PASSWORD", ""),
		HTTPAddr:            getEnv("HASHRELAY_HTTP_ADDR", ":8085"),
		DefaultWordlist:     getEnv("HASHRELAY_DEFAULT_WORDLIST", "rockyou.txt"),
		DBPath:              getEnv("HASHRELAY_DB_PATH", "hashrelay.db"),
		AgentImage:          getEnv("HASHRELAY_AGENT_IMAGE", ""),
	}

	if cfg.CoordinatorUser == "" {
		return nil, fmt.Errorf("HASHRELAY_COORDINATOR_USER is required")
	}
	if cfg.CoordinatorPassword == "" {
		return nil, fmt.Errorf("HASHRELAY_COORDINATOR_PASSWORD is required")
	}

	var err error
	if cfg.Workers, err = getEnvInt64("HASHRELAY_WORKERS", 2); err != nil {
		return nil, err
	}
	if cfg.MaxRetries, err = getEnvInt("HASHRELAY_MAX_RETRIES", 3); err != nil {
		return nil, err
	}
	if cfg.MaxPolls, err = getEnvInt("HASHRELAY_MAX_POLLS", 360); err != nil {
		return nil, err
	}
	if cfg.BackoffBase, err = getEnvSeconds("HASHRELAY_BACKOFF_BASE_SECONDS", 1); err != nil {
		return nil, err
	}
	if cfg.PollInterval, err = getEnvSeconds("HASHRELAY_POLL_INTERVAL_SECONDS", 10); err != nil {
		return nil, err
	}

	// Decrypt the coordinator password if it was stored encrypted.
	secret, err := NewSecretKey()
	if err != nil {
		return nil, fmt.Errorf("init secret key: %w", err)
	}
	if cfg.CoordinatorPassword, err = secret.Decrypt(cfg.CoordinatorPassword); err != nil {
		return nil, fmt.Errorf("decrypt coordinator password: %w", err)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	raw, exists := os.LookupEnv(key)
	if !exists {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func getEnvInt64(key string, fallback int64) (int64, error) {
	raw, exists := os.LookupEnv(key)
	if !exists {
		return fallback, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func getEnvSeconds(key string, fallback int) (time.Duration, error) {
	v, err := getEnvInt(key, fallback)
	if err != nil {
		return 0, err
	}
	return time.Duration(v) * time.Second, nil
}
