package connectivity

import (
	"errors"
	"fmt"
	"net"

	"github.com/muurk/wifiboot/internal/credstore"
)

// Connect outcomes.
var (
	ErrInitFailure       = errors.New("network stack initialization failed")
	ErrRetriesExhausted  = errors.New("association retries exhausted")
	ErrTimeout           = errors.New("timed out waiting for connection")
	ErrConnectInProgress = errors.New("connect already in progress")
)

// State is the connection state owned by a Manager.
type State int32

const (
	// StateIdle is the state before the first Connect.
	StateIdle State = iota

	// StateConnecting means an association is in progress or being retried.
	StateConnecting

	// StateConnected means an address was acquired. Terminal.
	StateConnected

	// StateFailed means retries ran out or the wait timed out. Terminal.
	StateFailed
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Terminal reports whether no event can move the state any further.
func (s State) Terminal() bool {
	return s == StateConnected || s == StateFailed
}

// EventKind identifies a network-stack event.
type EventKind int

const (
	// EventStackStarted is emitted once the station interface is up.
	EventStackStarted EventKind = iota + 1

	// EventDisconnected is emitted when association fails or the link drops.
	EventDisconnected

	// EventAddressAcquired is emitted when the interface obtains an IP address.
	EventAddressAcquired
)

// String returns a human-readable event name.
func (k EventKind) String() string {
	switch k {
	case EventStackStarted:
		return "stack_started"
	case EventDisconnected:
		return "disconnected"
	case EventAddressAcquired:
		return "address_acquired"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// ReasonAssociateFailed marks a Disconnected event synthesized because the
// association request itself returned an error.
const ReasonAssociateFailed = -1

// Event is a notification from the network stack. Reason and Address are
// informational and only logged.
type Event struct {
	Kind    EventKind
	Reason  int    // disconnect reason code, if any
	Address net.IP // acquired address, for EventAddressAcquired
}

// EventHandler receives network-stack events. Implementations must tolerate
// being called from a goroutine other than the one blocked in Connect.
type EventHandler interface {
	HandleEvent(ev Event)
}

// Stack is the network stack driving station-mode association.
//
// A Stack delivers events one at a time to its subscribers, never concurrently.
// Associate is the equivalent of asking the radio to (re)join the configured
// access point; the outcome arrives later as an event.
type Stack interface {
	Init() error
	Subscribe(h EventHandler) (unsubscribe func(), err error)
	Configure(creds credstore.Credentials) error
	Start() error
	Associate() error
}

// Snapshot is a point-in-time copy of the manager's state.
type Snapshot struct {
	State   State
	Retries int
	SSID    string
	Err     error
}
