// Package wifi provides the network stacks behind connectivity.Manager.
//
// Supplicant drives a running wpa_supplicant over its unixgram control
// interface and watches the station interface for a DHCP address.
// Simulator joins an in-memory table of networks and is used on the bench
// and in tests.
//
// Both deliver events from a single dispatcher goroutine, one at a time and
// in the order they were raised.
package wifi
