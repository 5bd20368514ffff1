package discovery

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// Device represents a wifiboot device found on the network
type Device struct {
	// Instance is the mDNS service instance name (e.g., "wifiboot http server")
	Instance string

	// Hostname is the mDNS hostname (e.g., "wifiboot-01.local.")
	Hostname string

	// IP is the preferred address, IPv4 when the device has one
	IP string

	// Port is the control server port (typically 80)
	Port int

	// Board is taken from the "board" TXT record
	Board string

	// Metadata contains every TXT record, including board and path
	Metadata map[string]string

	// DiscoveredAt is when the device was discovered
	DiscoveredAt time.Time
}

// String returns a human-readable string representation of the device
func (d *Device) String() string {
	return fmt.Sprintf("wifiboot %s [%s] (%s) at %s", d.Instance, d.Board, d.Hostname, d.Addr())
}

// Addr returns host:port, bracketing IPv6 addresses.
func (d *Device) Addr() string {
	return net.JoinHostPort(d.IP, strconv.Itoa(d.Port))
}

// BaseURL returns the HTTP base URL for the device
func (d *Device) BaseURL() string {
	return "http://" + d.Addr()
}

// GetMetadata retrieves a metadata value by key, or returns empty string if not found
func (d *Device) GetMetadata(key string) string {
	if d.Metadata == nil {
		return ""
	}
	return d.Metadata[key]
}
