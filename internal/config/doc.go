// Package config loads the wifiboot daemon configuration.
//
// The configuration is a YAML file, /etc/wifiboot/config.yaml by default,
// read over built-in defaults so a missing file or a missing key keeps the
// stock value:
//
//	version: 1
//	device:
//	  hostname: wifiboot-01
//	  board: rpi-zero2w
//	network:
//	  stack: supplicant
//	  interface: wlan0
//	  max_retries: 3
//	  connect_timeout: 30s
//	server:
//	  port: 80
//	  linger_timeout: 5s
//	  read_timeout: 10s
//	storage:
//	  data_dir: /var/lib/wifiboot
//	failsafe:
//	  mode: reboot
//
// WIFIBOOT_SSID, WIFIBOOT_PASSWORD and WIFIBOOT_DATA_DIR override the
// matching keys.
//
// # Security
//
// default_ssid and default_password are stored in plain text. They are only
// a fallback for a device whose credential record is missing or unreadable.
package config
