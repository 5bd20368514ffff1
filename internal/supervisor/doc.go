// Package supervisor sequences device bring-up.
//
// Boot mounts credential storage, loads the stored credentials (falling
// back to configured defaults), joins the network and, once the device has
// an address, advertises and starts the control server. If the network
// cannot be joined the device is restarted; there is no other recovery.
//
// Storage, advertisement and control server failures are logged and
// reported but never restart the device.
package supervisor
