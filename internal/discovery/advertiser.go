package discovery

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"

	"github.com/muurk/wifiboot/internal/logging"
)

const (
	DefaultInstance = "wifiboot http server"
	DefaultBoard    = "linux"
	DefaultPath     = "/"
)

// Advertiser publishes the control server on the local network.
type Advertiser interface {
	Advertise() error
	Shutdown()
}

// AdvertiserConfig describes the advertised service.
type AdvertiserConfig struct {
	// Instance is the service instance name
	Instance string

	// Hostname is published with an A record when set; otherwise the system
	// hostname is used
	Hostname string

	// Board and Path become TXT records
	Board string
	Path  string

	Port int

	// Interface restricts announcements to one interface; empty means all
	Interface string

	// TTL overrides the record TTL when non-zero
	TTL time.Duration
}

func (c AdvertiserConfig) withDefaults() AdvertiserConfig {
	c.Instance = trimInstance(c.Instance)
	if c.Instance == "" {
		c.Instance = DefaultInstance
	}
	if c.Board == "" {
		c.Board = DefaultBoard
	}
	if c.Path == "" {
		c.Path = DefaultPath
	}
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	return c
}

// txtRecords returns the TXT strings for the service.
func (c AdvertiserConfig) txtRecords() []string {
	return []string{
		boardKey + "=" + c.Board,
		"path=" + c.Path,
	}
}

// MDNSAdvertiser implements Advertiser using zeroconf.
type MDNSAdvertiser struct {
	config AdvertiserConfig

	mu     sync.Mutex
	server *zeroconf.Server
}

// NewMDNSAdvertiser creates a new mDNS advertiser.
func NewMDNSAdvertiser(config AdvertiserConfig) *MDNSAdvertiser {
	return &MDNSAdvertiser{config: config.withDefaults()}
}

// Config returns the effective configuration.
func (a *MDNSAdvertiser) Config() AdvertiserConfig {
	return a.config
}

// getInterfaces returns the interfaces to announce on; nil means all.
func (a *MDNSAdvertiser) getInterfaces() []net.Interface {
	if a.config.Interface == "" {
		return nil
	}
	iface, err := net.InterfaceByName(a.config.Interface)
	if err != nil {
		return nil
	}
	return []net.Interface{*iface}
}

// Advertise registers the service, replacing any earlier registration.
func (a *MDNSAdvertiser) Advertise() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}

	ifaces := a.getInterfaces()
	txt := a.config.txtRecords()

	var (
		server *zeroconf.Server
		err    error
	)
	if a.config.Hostname != "" {
		ips := hostAddresses(ifaces)
		if len(ips) == 0 {
			return errors.New("no address to publish for hostname")
		}
		server, err = zeroconf.RegisterProxy(
			a.config.Instance,
			ServiceType,
			ServiceDomain,
			a.config.Port,
			shortHostname(a.config.Hostname),
			ips,
			txt,
			ifaces,
		)
	} else {
		server, err = zeroconf.Register(
			a.config.Instance,
			ServiceType,
			ServiceDomain,
			a.config.Port,
			txt,
			ifaces,
		)
	}
	if err != nil {
		return fmt.Errorf("failed to register mDNS service: %w", err)
	}

	if a.config.TTL > 0 {
		server.TTL(uint32(a.config.TTL.Seconds()))
	}
	a.server = server

	logging.Info("Advertising control server",
		zap.String("instance", a.config.Instance),
		zap.String("hostname", a.config.Hostname),
		zap.Int("port", a.config.Port),
		zap.Strings("txt", txt),
	)
	return nil
}

// Shutdown withdraws the advertisement.
func (a *MDNSAdvertiser) Shutdown() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
		logging.Debug("mDNS advertisement withdrawn")
	}
}

// hostAddresses lists the unicast addresses of ifaces, or of every up,
// non-loopback interface when ifaces is nil.
func hostAddresses(ifaces []net.Interface) []string {
	if ifaces == nil {
		all, err := net.Interfaces()
		if err != nil {
			return nil
		}
		ifaces = all
	}

	var ips []string
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			ipNet, ok := addr.(*net.IPNet)
			if !ok || ipNet.IP.IsLinkLocalUnicast() {
				continue
			}
			ips = append(ips, ipNet.IP.String())
		}
	}
	return ips
}

// NopAdvertiser is used when advertisement is disabled.
type NopAdvertiser struct{}

func (NopAdvertiser) Advertise() error { return nil }
func (NopAdvertiser) Shutdown()        {}

// trimInstance keeps instance names within the 63 byte DNS label limit.
func trimInstance(name string) string {
	const maxLabel = 63
	name = strings.TrimSpace(name)
	if len(name) > maxLabel {
		name = name[:maxLabel]
	}
	return name
}
