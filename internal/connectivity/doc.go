// Package connectivity implements the station-mode connection state machine.
//
// A Manager owns the connection state and the retry counter for one device.
// The caller configures credentials and calls Connect, which blocks; the
// network stack reports progress by calling HandleEvent from its own
// goroutine. Events are expected one at a time.
//
// # Retry Policy
//
// After the first association request, each Disconnected event re-issues the
// request until MaxAttempts retries have been made. The next Disconnected
// fails the attempt with ErrRetriesExhausted. AddressAcquired resets the
// counter and completes the attempt. There is no backoff between retries.
//
// # Timeouts
//
// Connect waits at most Config.Timeout for a terminal state and then returns
// ErrTimeout. The attempt is marked Failed, so events arriving afterwards
// are ignored until the next Connect.
//
// # Usage
//
//	mgr := connectivity.NewManager(stack, connectivity.DefaultConfig())
//	mgr.Configure(creds)
//	if err := mgr.Connect(ctx); err != nil {
//	    // ErrRetriesExhausted, ErrTimeout or ErrInitFailure
//	}
package connectivity
