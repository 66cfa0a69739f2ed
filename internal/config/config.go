// Package config loads client and dev relay settings from the environment.
// A .env file in the working directory is honoured when present.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

type Config struct {
	Client   ClientConfig
	Timing   TimingConfig
	Identity IdentityConfig
	Relay    RelayConfig
	LogLevel string
}

// ClientConfig covers the two collaborators the engine talks to.
type ClientConfig struct {
	ServerURL         string // websocket endpoint
	APIURL            string // REST base, without trailing slash
	DefaultSpace      string
	HTTPTimeout       time.Duration
	ReconnectAttempts int
	ReconnectDelay    time.Duration
	SendQueue         int
	MaxImageBytes     int64
}

// TimingConfig holds the notification and dedupe windows.
type TimingConfig struct {
	FreshWindow  time.Duration
	BannerWindow time.Duration
	DedupeWindow time.Duration
}

type IdentityConfig struct {
	Path string
}

// RelayConfig is only read by the dev relay in cmd/.
type RelayConfig struct {
	ListenAddr string
	StaticDir  string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	attempts, err := strconv.Atoi(getEnv("RECONNECT_ATTEMPTS", "5"))
	if err != nil {
		return nil, errors.Wrap(err, "invalid RECONNECT_ATTEMPTS")
	}
	sendQueue, err := strconv.Atoi(getEnv("SEND_QUEUE", "16"))
	if err != nil {
		return nil, errors.Wrap(err, "invalid SEND_QUEUE")
	}
	maxImage, err := strconv.ParseInt(getEnv("MAX_IMAGE_BYTES", "2097152"), 10, 64) // 2MiB
	if err != nil {
		return nil, errors.Wrap(err, "invalid MAX_IMAGE_BYTES")
	}

	cfg := &Config{
		Client: ClientConfig{
			ServerURL:         getEnv("SERVER_URL", "ws://127.0.0.1:3000/ws"),
			APIURL:            getEnv("API_URL", "http://127.0.0.1:3000/api"),
			DefaultSpace:      getEnv("DEFAULT_SPACE", "general"),
			ReconnectAttempts: attempts,
			SendQueue:         sendQueue,
			MaxImageBytes:     maxImage,
		},
		Identity: IdentityConfig{Path: getEnv("IDENTITY_PATH", defaultIdentityPath())},
		Relay: RelayConfig{
			ListenAddr: getEnv("LISTEN_ADDR", "127.0.0.1:3000"),
			StaticDir:  getEnv("STATIC_DIR", ""),
		},
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	if cfg.Client.HTTPTimeout, err = getDuration("HTTP_TIMEOUT", "10s"); err != nil {
		return nil, err
	}
	if cfg.Client.ReconnectDelay, err = getDuration("RECONNECT_DELAY", "1s"); err != nil {
		return nil, err
	}
	if cfg.Timing.FreshWindow, err = getDuration("FRESH_WINDOW", "2s"); err != nil {
		return nil, err
	}
	if cfg.Timing.BannerWindow, err = getDuration("BANNER_WINDOW", "3s"); err != nil {
		return nil, err
	}
	if cfg.Timing.DedupeWindow, err = getDuration("DEDUPE_WINDOW", "1s"); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the built-in settings without touching the environment.
func Default() *Config {
	return &Config{
		Client: ClientConfig{
			ServerURL:         "ws://127.0.0.1:3000/ws",
			APIURL:            "http://127.0.0.1:3000/api",
			DefaultSpace:      "general",
			HTTPTimeout:       10 * time.Second,
			ReconnectAttempts: 5,
			ReconnectDelay:    time.Second,
			SendQueue:         16,
			MaxImageBytes:     2 << 20,
		},
		Timing: TimingConfig{
			FreshWindow:  2 * time.Second,
			BannerWindow: 3 * time.Second,
			DedupeWindow: time.Second,
		},
		Identity: IdentityConfig{Path: defaultIdentityPath()},
		Relay:    RelayConfig{ListenAddr: "127.0.0.1:3000"},
		LogLevel: "info",
	}
}

func defaultIdentityPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "pelusa-spaces", "identity.json")
}

func getDuration(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(getEnv(key, fallback))
	if err != nil {
		return 0, errors.Wrapf(err, "invalid %s", key)
	}
	return d, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}
