// Package credstore persists the station-mode network credentials.
//
// The record is a fixed 96-byte layout: a 32-byte SSID field followed by a
// 64-byte passphrase field, each NUL padded. There is no version byte and no
// checksum; a record of any other length is reported as ErrIO.
//
// The store performs no validation of credential content. Callers that accept
// credentials from outside (the CLI, the provisioning payload) run
// Credentials.Validate first.
//
//	store := credstore.New("/var/lib/wifiboot")
//	if err := store.Mount(); err != nil {
//	    // ErrUnavailable: fall back to defaults
//	}
//	creds, err := store.Load()
package credstore
