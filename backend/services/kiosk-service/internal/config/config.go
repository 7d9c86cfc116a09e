package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	libconfig "solarcharge/backend/libs/config"
)

// Store backends.
const (
	StoreRedis  = "redis"
	StoreMemory = "memory"
)

// HTTP settings.
type HTTP struct {
	Port           string        `yaml:"port" env:"KIOSK_HTTP_PORT"`
	WSWriteTimeout time.Duration `yaml:"wsWriteTimeout" env:"KIOSK_WS_WRITE_TIMEOUT"`
	WSPingInterval time.Duration `yaml:"wsPingInterval" env:"KIOSK_WS_PING_INTERVAL"`
	// WebDir, when set, is served at / so the kiosk page and /ws share an origin.
	WebDir         string        `yaml:"webDir" env:"KIOSK_WEB_DIR"`
}

// Store settings. Key is the record path shared with the charging controller.
type Store struct {
	Backend      string        `yaml:"backend" env:"KIOSK_STORE_BACKEND"`
	Key          string        `yaml:"key" env:"KIOSK_STORE_KEY"`
	PollInterval time.Duration `yaml:"pollInterval" env:"KIOSK_STORE_POLL_INTERVAL"`
	ResetOnStart bool          `yaml:"resetOnStart" env:"KIOSK_STORE_RESET_ON_START"`
}

// Redis connection.
type Redis struct {
	Addr     string `yaml:"addr" env:"KIOSK_REDIS_ADDR"`
	Password string `yaml:"password" env:"KIOSK_REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"KIOSK_REDIS_DB"`
}

// Tariff and input limits.
type Tariff struct {
	RatePerHour int `yaml:"ratePerHour" env:"KIOSK_RATE_PER_HOUR"`
	MaxHours    int `yaml:"maxHours" env:"KIOSK_MAX_HOURS"`
	MaxMinutes  int `yaml:"maxMinutes" env:"KIOSK_MAX_MINUTES"`
	MaxSeconds  int `yaml:"maxSeconds" env:"KIOSK_MAX_SECONDS"`
}

// Payment payee.
type Payment struct {
	PayeeVPA  string `yaml:"payeeVpa" env:"KIOSK_UPI_VPA"`
	PayeeName string `yaml:"payeeName" env:"KIOSK_UPI_NAME"`
	Note      string `yaml:"note" env:"KIOSK_UPI_NOTE"`
	QRSize    int    `yaml:"qrSize" env:"KIOSK_UPI_QR_SIZE"`
}

// Simulator toggles the in-process charging controller stand-in.
type Simulator struct {
	Enabled bool `yaml:"enabled" env:"KIOSK_SIMULATOR_ENABLED"`
}

// Config defines kiosk service configuration.
type Config struct {
	HTTP      HTTP      `yaml:"http"`
	Store     Store     `yaml:"store"`
	Redis     Redis     `yaml:"redis"`
	Tariff    Tariff    `yaml:"tariff"`
	Payment   Payment   `yaml:"payment"`
	Simulator Simulator `yaml:"simulator"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		HTTP: HTTP{
			Port:           "8080",
			WSWriteTimeout: 10 * time.Second,
			WSPingInterval: 30 * time.Second,
		},
		Store: Store{
			Backend:      StoreRedis,
			Key:          "charging_station",
			PollInterval: 2 * time.Second,
		},
		Redis: Redis{Addr: "localhost:6379"},
		Tariff: Tariff{
			RatePerHour: 20,
			MaxHours:    24,
			MaxMinutes:  59,
			MaxSeconds:  59,
		},
		Payment: Payment{
			PayeeVPA:  "your-upi-id@upi",
			PayeeName: "Solar Charging Station",
			Note:      "Charging payment",
			QRSize:    256,
		},
	}
}

// Load reads configuration via shared helper.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile is Load with an explicit YAML path; empty falls back to CONFIG_FILE.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	var err error
	if path == "" {
		err = libconfig.LoadConfig(cfg)
	} else {
		err = libconfig.LoadConfigFile(path, cfg)
	}
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate implements libconfig.Validator.
func (c *Config) Validate() error {
	c.Store.Backend = strings.ToLower(strings.TrimSpace(c.Store.Backend))
	switch c.Store.Backend {
	case StoreRedis:
		if strings.TrimSpace(c.Redis.Addr) == "" {
			return errors.New("redis addr required")
		}
	case StoreMemory:
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	if strings.TrimSpace(c.Store.Key) == "" {
		return errors.New("store key required")
	}
	if c.Tariff.RatePerHour <= 0 {
		return errors.New("tariff rate per hour must be positive")
	}
	if strings.TrimSpace(c.Payment.PayeeVPA) == "" {
		return errors.New("payment payee vpa required")
	}
	if c.HTTP.WebDir != "" {
		info, err := os.Stat(c.HTTP.WebDir)
		if err != nil {
			return fmt.Errorf("web dir: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("web dir %q is not a directory", c.HTTP.WebDir)
		}
	}
	return nil
}

// HTTPAddress returns :port style.
func (c *Config) HTTPAddress() string {
	port := strings.TrimSpace(c.HTTP.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return fmt.Sprintf(":%s", port)
}
