package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all environment-based configuration for carbsync.
type Config struct {
	// Shared location every instance can reach. Each instance writes
	// <SHARED_DIR>/<DEVICE_NAME>/ and reads the other device directories.
	SharedDir string `env:"SHARED_DIR"`

	// Local state database. Defaults to ~/.carbsync/state.db.
	StateDB string `env:"STATE_DB"`

	// Device name this instance writes under. Defaults to system hostname.
	DeviceName string `env:"DEVICE_NAME"`

	// How often the ongoing meal of a peer is re-imported while observed.
	PollInterval time.Duration `env:"POLL_INTERVAL" envDefault:"5s"`

	// Upper bound for any single shared-storage call.
	IOTimeout time.Duration `env:"IO_TIMEOUT" envDefault:"10s"`

	// Device whose ongoing meal is observed. Empty picks the peer that
	// wrote its ongoing meal most recently.
	ObserveDevice string `env:"OBSERVE_DEVICE"`

	// Watch peer directories and import changed snapshots right away.
	WatchShared bool `env:"WATCH_SHARED" envDefault:"true"`

	// Address for the Prometheus endpoint. Empty disables it.
	MetricsAddr string `env:"METRICS_ADDR"`

	// Environment controls log format: JSON in production, debug text in
	// development.
	Environment string `env:"ENVIRONMENT" envDefault:"development"`

	// Log to a rotated file instead of stdout.
	LogFile string `env:"LOG_FILE"`
}

// warnInsecureEnvFile checks whether the .env file (if present) is
// writable by group or others. The file decides where state is written.
func warnInsecureEnvFile() {
	if runtime.GOOS == "windows" {
		return
	}

	info, err := os.Stat(".env")
	if err != nil {
		return // file does not exist, nothing to check
	}

	mode := info.Mode().Perm()
	if mode&0o022 != 0 {
		log.Printf("WARNING: .env file has insecure permissions %04o; recommended 0600", mode)
	}
}

// Load reads configuration from environment variables.
// It first attempts to load a .env file if present, then parses env vars.
func Load() (*Config, error) {
	_ = godotenv.Load()

	warnInsecureEnvFile()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if cfg.DeviceName == "" {
		hostname, err := os.Hostname()
		if err != nil || hostname == "" {
			hostname = "carbsync"
		}

		cfg.DeviceName = hostname
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	// Peers are found by listing SHARED_DIR, and the own directory is
	// excluded by name, so both must be stable.
	absDir, err := filepath.Abs(cfg.SharedDir)
	if err != nil {
		return nil, fmt.Errorf("resolving shared dir to absolute path: %w", err)
	}

	cfg.SharedDir = absDir

	return cfg, nil
}

func (c *Config) validate() error {
	if c.SharedDir == "" {
		return fmt.Errorf("SHARED_DIR is required")
	}

	if strings.ContainsAny(c.DeviceName, `/\`) || strings.HasPrefix(c.DeviceName, ".") {
		return fmt.Errorf("DEVICE_NAME %q must be a plain directory name", c.DeviceName)
	}

	if c.ObserveDevice != "" && c.ObserveDevice == c.DeviceName {
		return fmt.Errorf("OBSERVE_DEVICE must name another device, not %q", c.DeviceName)
	}

	if c.Environment != "development" && c.Environment != "production" {
		return fmt.Errorf("ENVIRONMENT must be development or production, got %q", c.Environment)
	}

	if c.PollInterval <= 0 {
		return fmt.Errorf("POLL_INTERVAL must be positive, got %s", c.PollInterval)
	}

	if c.IOTimeout <= 0 {
		return fmt.Errorf("IO_TIMEOUT must be positive, got %s", c.IOTimeout)
	}

	return nil
}
