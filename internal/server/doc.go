// Package server implements the device's control-plane HTTP API.
//
// The Server registers two routes on a Provider once the device has a
// network address:
//
//	GET  /api/v1/info       status document
//	POST /api/v1/systemset  opaque configuration payload
//
// # Registration
//
// Start brings the provider up and registers both routes. If neither
// registers, the provider is stopped and Start returns
// ErrNoHandlersRegistered. If only one registers, the server keeps running
// in degraded mode; Degraded and Registered report which routes are live.
//
// # Payload Ingestion
//
// The configuration-write handler stages the body in a 1024 byte scratch
// buffer taken from a pool owned by the server context, one buffer per
// request. Bodies declaring 1024 bytes or more are refused with 500 before
// anything is read. An empty body is refused with 400, as is a body that
// ends before its declared length. A request without a declared length is
// refused with 411. The assembled payload is handed to a PayloadSink.
//
// # Providers
//
// HTTPProvider is the production Provider: a net/http server with a chi
// router. Routes may be registered after the listener is up.
package server
