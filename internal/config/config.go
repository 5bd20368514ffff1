package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/muurk/wifiboot/internal/connectivity"
	"github.com/muurk/wifiboot/internal/credstore"
	"github.com/muurk/wifiboot/internal/discovery"
	"github.com/muurk/wifiboot/internal/server"
	"github.com/muurk/wifiboot/internal/wifi"
)

const (
	// DefaultPath is where the daemon looks for its configuration.
	DefaultPath = "/etc/wifiboot/config.yaml"

	// DefaultDataDir holds the credential record.
	DefaultDataDir = "/var/lib/wifiboot"

	currentVersion = 1

	StackSupplicant = "supplicant"
	StackSimulator  = "simulator"

	FailsafeReboot = "reboot"
	FailsafeExit   = "exit"
)

// Environment overrides, applied after the file is read.
const (
	EnvSSID     = "WIFIBOOT_SSID"
	EnvPassword = "WIFIBOOT_PASSWORD"
	EnvDataDir  = "WIFIBOOT_DATA_DIR"
)

// Mutex for thread-safe file operations
var fileMutex sync.Mutex

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Version: currentVersion,
		Device: DeviceConfig{
			Instance:  discovery.DefaultInstance,
			Board:     discovery.DefaultBoard,
			Advertise: true,
		},
		Network: NetworkConfig{
			Stack:          StackSupplicant,
			Interface:      wifi.DefaultInterface,
			ControlDir:     wifi.DefaultControlDir,
			MaxRetries:     connectivity.DefaultMaxAttempts,
			ConnectTimeout: connectivity.DefaultTimeout,
			AddressTimeout: wifi.DefaultAddressTimeout,
		},
		Server: ServerConfig{
			Port:          server.DefaultPort,
			LingerTimeout: server.DefaultLingerTimeout,
			ReadTimeout:   server.DefaultReadTimeout,
			BasePath:      server.DefaultBasePath,
		},
		Storage: StorageConfig{
			DataDir: DefaultDataDir,
		},
		Failsafe: FailsafeConfig{
			Mode: FailsafeReboot,
		},
	}
}

// Load reads the configuration at path over the defaults. A missing file is
// not an error. Environment overrides are applied and the result validated.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		// defaults only
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if cfg.Version == 0 {
		cfg.Version = currentVersion
	}
	if cfg.Version != currentVersion {
		return nil, fmt.Errorf("unsupported config version: %d (expected %d)", cfg.Version, currentVersion)
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvSSID); v != "" {
		c.Network.DefaultSSID = v
	}
	if v := os.Getenv(EnvPassword); v != "" {
		c.Network.DefaultPass = v
	}
	if v := os.Getenv(EnvDataDir); v != "" {
		c.Storage.DataDir = v
	}
}

// Validate checks the configuration for values the daemon cannot run with.
func (c *Config) Validate() error {
	var errs []error

	switch c.Network.Stack {
	case StackSupplicant, StackSimulator:
	default:
		errs = append(errs, fmt.Errorf("network.stack: unknown stack %q", c.Network.Stack))
	}
	if c.Network.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("network.max_retries: must not be negative"))
	}
	if c.Network.ConnectTimeout < 0 || c.Network.AddressTimeout < 0 {
		errs = append(errs, fmt.Errorf("network: timeouts must not be negative"))
	}
	if _, err := credstore.NewCredentials(c.Network.DefaultSSID, c.Network.DefaultPass); err != nil {
		errs = append(errs, fmt.Errorf("network: default credentials: %w", err))
	}

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port: %d out of range", c.Server.Port))
	}
	if c.Server.LingerTimeout < 0 {
		errs = append(errs, fmt.Errorf("server.linger_timeout: must not be negative"))
	}
	if c.Server.ReadTimeout < 0 {
		errs = append(errs, fmt.Errorf("server.read_timeout: must not be negative"))
	}

	if c.Storage.DataDir == "" {
		errs = append(errs, fmt.Errorf("storage.data_dir: required"))
	}

	switch c.Failsafe.Mode {
	case FailsafeReboot, FailsafeExit:
	default:
		errs = append(errs, fmt.Errorf("failsafe.mode: unknown mode %q", c.Failsafe.Mode))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// DefaultCredentials returns the fallback credentials from the network section.
func (c *Config) DefaultCredentials() credstore.Credentials {
	return credstore.Credentials{SSID: c.Network.DefaultSSID, Password: c.Network.DefaultPass}
}

// Save writes the configuration to path.
// Performs an atomic write to prevent corruption on crash.
func (c *Config) Save(path string) error {
	fileMutex.Lock()
	defer fileMutex.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# wifiboot configuration
#
# Credentials given here are only used when the stored record is missing
# or unreadable. Use "wifiboot creds set" to store them instead.

`)
	data = append(header, data...)

	// Write to temporary file first (atomic write)
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temporary config file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to save config file: %w", err)
	}

	return nil
}
