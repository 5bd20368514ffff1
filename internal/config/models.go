package config

import "time"

// Config is the daemon configuration file.
type Config struct {
	Version  int            `yaml:"version"`
	Device   DeviceConfig   `yaml:"device"`
	Network  NetworkConfig  `yaml:"network"`
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	Failsafe FailsafeConfig `yaml:"failsafe"`
}

// DeviceConfig identifies the device on the network.
type DeviceConfig struct {
	Hostname  string `yaml:"hostname,omitempty"` // mDNS hostname; empty uses the system hostname
	Instance  string `yaml:"instance"`           // mDNS service instance name
	Board     string `yaml:"board"`              // published as the "board" TXT record
	Advertise bool   `yaml:"advertise"`          // announce the control server over mDNS
}

// NetworkConfig selects the network stack and the connection policy.
type NetworkConfig struct {
	Stack          string            `yaml:"stack"` // "supplicant" or "simulator"
	Interface      string            `yaml:"interface"`
	ControlDir     string            `yaml:"control_dir"` // wpa_supplicant control socket directory
	MaxRetries     int               `yaml:"max_retries"`
	ConnectTimeout time.Duration     `yaml:"connect_timeout"` // 0 waits forever
	AddressTimeout time.Duration     `yaml:"address_timeout"` // DHCP wait after association
	DefaultSSID    string            `yaml:"default_ssid,omitempty"`
	DefaultPass    string            `yaml:"default_password,omitempty"`
	Simulated      map[string]string `yaml:"simulated,omitempty"` // ssid -> passphrase for the simulator
}

// ServerConfig configures the control server listener.
type ServerConfig struct {
	Host          string        `yaml:"host,omitempty"`
	Port          int           `yaml:"port"`
	LingerTimeout time.Duration `yaml:"linger_timeout"`
	ReadTimeout   time.Duration `yaml:"read_timeout"` // whole-request read limit
	BasePath      string        `yaml:"base_path"`
}

// StorageConfig locates the persisted credential record.
type StorageConfig struct {
	DataDir string `yaml:"data_dir"`
}

// FailsafeConfig selects the recovery action when the network cannot be joined.
type FailsafeConfig struct {
	Mode     string `yaml:"mode"` // "reboot" or "exit"
	ExitCode int    `yaml:"exit_code,omitempty"`
}
