package wifi

import (
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/wifiboot/internal/connectivity"
	"github.com/muurk/wifiboot/internal/credstore"
	"github.com/muurk/wifiboot/internal/logging"
)

const (
	// DefaultControlDir is where wpa_supplicant creates its control sockets.
	DefaultControlDir = "/var/run/wpa_supplicant"

	// DefaultInterface is the station interface.
	DefaultInterface = "wlan0"

	// DefaultAddressTimeout bounds the wait for DHCP after association.
	DefaultAddressTimeout = 20 * time.Second

	commandTimeout = 5 * time.Second
	pollInterval   = 500 * time.Millisecond
	maxReply       = 4096
)

// Disconnect reason used when association succeeded but no IPv4 address appeared.
const ReasonNoAddress = 1000

// SupplicantConfig configures the wpa_supplicant backed stack.
type SupplicantConfig struct {
	Interface      string
	ControlDir     string
	AddressTimeout time.Duration
}

// Supplicant is a Stack that drives wpa_supplicant through its control socket.
// Address acquisition is detected by watching the interface for an IPv4
// address, which the system DHCP client assigns.
type Supplicant struct {
	cfg SupplicantConfig
	bus *bus

	mu        sync.Mutex
	cmd       *ctrlConn
	mon       *ctrlConn
	networkID string
	selected  bool
	watching  bool
	cancel    chan struct{}
}

// NewSupplicant creates a stack for the configured interface.
func NewSupplicant(cfg SupplicantConfig) *Supplicant {
	if cfg.Interface == "" {
		cfg.Interface = DefaultInterface
	}
	if cfg.ControlDir == "" {
		cfg.ControlDir = DefaultControlDir
	}
	if cfg.AddressTimeout <= 0 {
		cfg.AddressTimeout = DefaultAddressTimeout
	}
	return &Supplicant{
		cfg:    cfg,
		bus:    newBus(),
		cancel: make(chan struct{}),
	}
}

// Init opens the command connection and checks wpa_supplicant answers.
func (s *Supplicant) Init() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cmd == nil {
		conn, err := dialCtrl(filepath.Join(s.cfg.ControlDir, s.cfg.Interface))
		if err != nil {
			return err
		}
		s.cmd = conn
	}

	reply, err := s.cmd.request("PING")
	if err != nil {
		return err
	}
	if reply != "PONG" {
		return fmt.Errorf("unexpected PING reply %q", reply)
	}

	s.bus.start()
	return nil
}

// Subscribe registers h for events.
func (s *Supplicant) Subscribe(h connectivity.EventHandler) (func(), error) {
	return s.bus.subscribe(h), nil
}

// Configure replaces every configured network with a single one for creds.
func (s *Supplicant) Configure(creds credstore.Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cmd == nil {
		return errors.New("supplicant not initialized")
	}

	if err := s.cmd.expectOK("REMOVE_NETWORK all"); err != nil {
		return err
	}
	id, err := s.cmd.request("ADD_NETWORK")
	if err != nil {
		return err
	}
	if _, err := strconv.Atoi(id); err != nil {
		return fmt.Errorf("unexpected ADD_NETWORK reply %q", id)
	}

	for _, cmd := range networkCommands(id, creds) {
		if err := s.cmd.expectOK(cmd); err != nil {
			return err
		}
	}

	s.networkID = id
	s.selected = false
	return nil
}

// networkCommands returns the SET_NETWORK commands for creds. The SSID is sent
// hex encoded so it needs no quoting.
func networkCommands(id string, creds credstore.Credentials) []string {
	cmds := []string{
		fmt.Sprintf("SET_NETWORK %s ssid %s", id, hex.EncodeToString([]byte(creds.SSID))),
		fmt.Sprintf("SET_NETWORK %s scan_ssid 1", id),
	}
	switch {
	case creds.Password == "":
		cmds = append(cmds, fmt.Sprintf("SET_NETWORK %s key_mgmt NONE", id))
	case len(creds.Password) == credstore.PasswordSize && isHex(creds.Password):
		// a 64 character hex string is a raw PSK, not a passphrase
		cmds = append(cmds, fmt.Sprintf("SET_NETWORK %s psk %s", id, creds.Password))
	default:
		cmds = append(cmds,
			fmt.Sprintf("SET_NETWORK %s key_mgmt WPA-PSK SAE", id),
			fmt.Sprintf("SET_NETWORK %s ieee80211w 1", id),
			fmt.Sprintf(`SET_NETWORK %s psk "%s"`, id, creds.Password),
		)
	}
	return cmds
}

func isHex(s string) bool {
	_, err := hex.DecodeString(s)
	return err == nil
}

// Start attaches the monitor connection and reports the station as started.
func (s *Supplicant) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.mon == nil {
		mon, err := dialCtrl(filepath.Join(s.cfg.ControlDir, s.cfg.Interface))
		if err != nil {
			return err
		}
		if err := mon.expectOK("ATTACH"); err != nil {
			_ = mon.close()
			return err
		}
		s.mon = mon
		go s.monitor(mon)
	}

	s.bus.publish(connectivity.Event{Kind: connectivity.EventStackStarted})
	return nil
}

// Associate selects the configured network the first time and asks for a
// reassociation afterwards.
func (s *Supplicant) Associate() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cmd == nil || s.networkID == "" {
		return errors.New("no network configured")
	}
	if !s.selected {
		if err := s.cmd.expectOK("SELECT_NETWORK " + s.networkID); err != nil {
			return err
		}
		s.selected = true
		return nil
	}
	return s.cmd.expectOK("REASSOCIATE")
}

// Close detaches from wpa_supplicant and stops event delivery.
func (s *Supplicant) Close() error {
	s.mu.Lock()
	select {
	case <-s.cancel:
	default:
		close(s.cancel)
	}
	var errs []error
	if s.mon != nil {
		// the monitor goroutine owns reads on this socket, so the reply is not awaited
		_, _ = s.mon.conn.Write([]byte("DETACH"))
		errs = append(errs, s.mon.close())
		s.mon = nil
	}
	if s.cmd != nil {
		errs = append(errs, s.cmd.close())
		s.cmd = nil
	}
	s.mu.Unlock()

	s.bus.close()
	return errors.Join(errs...)
}

func (s *Supplicant) monitor(mon *ctrlConn) {
	buf := make([]byte, maxReply)
	for {
		n, err := mon.conn.Read(buf)
		if err != nil {
			select {
			case <-s.cancel:
			default:
				logging.Error("wpa_supplicant monitor stopped", zap.Error(err))
			}
			return
		}

		msg := string(buf[:n])
		logging.Debug("wpa_supplicant event", zap.String("event", msg))

		ev, connected, ok := parseEvent(msg)
		switch {
		case connected:
			s.watchAddress()
		case ok:
			s.bus.publish(ev)
		}
	}
}

// parseEvent maps an unsolicited control message to a stack event. connected
// is true for link-layer association, which still has to wait for an address.
func parseEvent(msg string) (ev connectivity.Event, connected bool, ok bool) {
	// strip the "<3>" priority prefix
	if strings.HasPrefix(msg, "<") {
		if i := strings.IndexByte(msg, '>'); i >= 0 {
			msg = msg[i+1:]
		}
	}
	msg = strings.TrimSpace(msg)

	switch {
	case strings.HasPrefix(msg, "CTRL-EVENT-CONNECTED"):
		return connectivity.Event{}, true, false
	case strings.HasPrefix(msg, "CTRL-EVENT-DISCONNECTED"):
		return connectivity.Event{Kind: connectivity.EventDisconnected, Reason: fieldInt(msg, "reason")}, false, true
	case strings.HasPrefix(msg, "CTRL-EVENT-NETWORK-NOT-FOUND"):
		return connectivity.Event{Kind: connectivity.EventDisconnected, Reason: ReasonNoAPFound}, false, true
	case strings.HasPrefix(msg, "CTRL-EVENT-SSID-TEMP-DISABLED"):
		return connectivity.Event{Kind: connectivity.EventDisconnected, Reason: ReasonHandshakeTimeout}, false, true
	default:
		return connectivity.Event{}, false, false
	}
}

// fieldInt extracts key=<int> from a space separated event line.
func fieldInt(msg, key string) int {
	for _, f := range strings.Fields(msg) {
		if v, found := strings.CutPrefix(f, key+"="); found {
			n, err := strconv.Atoi(v)
			if err == nil {
				return n
			}
		}
	}
	return 0
}

// watchAddress polls the interface until it has an IPv4 address and then
// reports EventAddressAcquired, or reports a disconnect after AddressTimeout.
func (s *Supplicant) watchAddress() {
	s.mu.Lock()
	if s.watching {
		s.mu.Unlock()
		return
	}
	s.watching = true
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			s.watching = false
			s.mu.Unlock()
		}()

		deadline := time.NewTimer(s.cfg.AddressTimeout)
		defer deadline.Stop()
		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()

		for {
			if ip := interfaceIPv4(s.cfg.Interface); ip != nil {
				s.bus.publish(connectivity.Event{Kind: connectivity.EventAddressAcquired, Address: ip})
				return
			}
			select {
			case <-ticker.C:
			case <-deadline.C:
				s.bus.publish(connectivity.Event{Kind: connectivity.EventDisconnected, Reason: ReasonNoAddress})
				return
			case <-s.cancel:
				return
			}
		}
	}()
}

func interfaceIPv4(name string) net.IP {
	iface, err := net.InterfaceByName(name)
	if err != nil {
		return nil
	}
	addrs, err := iface.Addrs()
	if err != nil {
		return nil
	}
	for _, a := range addrs {
		if ipNet, ok := a.(*net.IPNet); ok {
			if ip4 := ipNet.IP.To4(); ip4 != nil && !ip4.IsLinkLocalUnicast() {
				return ip4
			}
		}
	}
	return nil
}

// ctrlConn is one client socket on the wpa_supplicant control interface.
type ctrlConn struct {
	conn  *net.UnixConn
	local string
	mu    sync.Mutex
}

func dialCtrl(remote string) (*ctrlConn, error) {
	f, err := os.CreateTemp("", "wifiboot-ctrl-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create control socket path: %w", err)
	}
	local := f.Name()
	_ = f.Close()
	_ = os.Remove(local)

	conn, err := net.DialUnix("unixgram",
		&net.UnixAddr{Name: local, Net: "unixgram"},
		&net.UnixAddr{Name: remote, Net: "unixgram"},
	)
	if err != nil {
		_ = os.Remove(local)
		return nil, fmt.Errorf("failed to connect to wpa_supplicant at %s: %w", remote, err)
	}
	return &ctrlConn{conn: conn, local: local}, nil
}

// request sends a command and returns the trimmed reply. Unsolicited event
// messages that arrive in between are skipped.
func (c *ctrlConn) request(cmd string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.conn.SetDeadline(time.Now().Add(commandTimeout)); err != nil {
		return "", err
	}
	defer func() { _ = c.conn.SetDeadline(time.Time{}) }()

	if _, err := c.conn.Write([]byte(cmd)); err != nil {
		return "", fmt.Errorf("wpa_supplicant %s: %w", firstWord(cmd), err)
	}

	buf := make([]byte, maxReply)
	for {
		n, err := c.conn.Read(buf)
		if err != nil {
			return "", fmt.Errorf("wpa_supplicant %s: %w", firstWord(cmd), err)
		}
		if n > 0 && buf[0] == '<' {
			continue
		}
		return strings.TrimSpace(string(buf[:n])), nil
	}
}

func (c *ctrlConn) expectOK(cmd string) error {
	reply, err := c.request(cmd)
	if err != nil {
		return err
	}
	if reply != "OK" {
		return fmt.Errorf("wpa_supplicant %s: %s", firstWord(cmd), reply)
	}
	return nil
}

func (c *ctrlConn) close() error {
	err := c.conn.Close()
	_ = os.Remove(c.local)
	return err
}

func firstWord(cmd string) string {
	if i := strings.IndexByte(cmd, ' '); i >= 0 {
		return cmd[:i]
	}
	return cmd
}
