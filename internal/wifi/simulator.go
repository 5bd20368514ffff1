package wifi

import (
	"errors"
	"net"
	"sync"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/muurk/wifiboot/internal/connectivity"
	"github.com/muurk/wifiboot/internal/credstore"
	"github.com/muurk/wifiboot/internal/logging"
)

// Disconnect reason codes reported by the simulator, taken from IEEE 802.11.
const (
	ReasonNoAPFound        = 201
	ReasonHandshakeTimeout = 15
)

// DefaultSimulatedAddress is the address handed out on a successful association.
var DefaultSimulatedAddress = net.IPv4(192, 168, 4, 16)

// Simulator is a Stack that joins a fixed set of networks in memory. It is
// used on the bench and in tests where no radio is present.
type Simulator struct {
	// Latency delays each association outcome.
	Latency time.Duration

	// Address is reported with EventAddressAcquired.
	Address net.IP

	networks map[string]string
	bus      *bus

	mu    sync.Mutex
	creds credstore.Credentials

	associations atomic.Int64
	closed       atomic.Bool
}

// NewSimulator creates a simulator that accepts the given ssid → passphrase pairs.
func NewSimulator(networks map[string]string) *Simulator {
	known := make(map[string]string, len(networks))
	for ssid, psk := range networks {
		known[ssid] = psk
	}
	return &Simulator{
		Address:  DefaultSimulatedAddress,
		networks: known,
		bus:      newBus(),
	}
}

// Init starts the event dispatcher.
func (s *Simulator) Init() error {
	if s.closed.Load() {
		return errors.New("simulator closed")
	}
	s.bus.start()
	return nil
}

// Subscribe registers h for events.
func (s *Simulator) Subscribe(h connectivity.EventHandler) (func(), error) {
	return s.bus.subscribe(h), nil
}

// Configure sets the network to join.
func (s *Simulator) Configure(creds credstore.Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds = creds
	return nil
}

// Start brings the simulated station up.
func (s *Simulator) Start() error {
	logging.Debug("Simulated station started")
	s.bus.publish(connectivity.Event{Kind: connectivity.EventStackStarted})
	return nil
}

// Associate schedules the outcome of joining the configured network.
func (s *Simulator) Associate() error {
	if s.closed.Load() {
		return errors.New("simulator closed")
	}
	s.associations.Inc()

	s.mu.Lock()
	creds := s.creds
	s.mu.Unlock()

	ev := s.outcome(creds)
	logging.Debug("Simulated association",
		zap.String("ssid", creds.SSID),
		zap.Stringer("outcome", ev.Kind),
	)

	time.AfterFunc(s.Latency, func() {
		s.bus.publish(ev)
	})
	return nil
}

func (s *Simulator) outcome(creds credstore.Credentials) connectivity.Event {
	psk, ok := s.networks[creds.SSID]
	switch {
	case creds.SSID == "" || !ok:
		return connectivity.Event{Kind: connectivity.EventDisconnected, Reason: ReasonNoAPFound}
	case psk != creds.Password:
		return connectivity.Event{Kind: connectivity.EventDisconnected, Reason: ReasonHandshakeTimeout}
	default:
		return connectivity.Event{Kind: connectivity.EventAddressAcquired, Address: s.Address}
	}
}

// Associations returns how many association requests have been made.
func (s *Simulator) Associations() int64 {
	return s.associations.Load()
}

// Close stops event delivery.
func (s *Simulator) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.bus.close()
	return nil
}
