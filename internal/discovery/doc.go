// Package discovery advertises and finds wifiboot devices over mDNS.
//
// A device announces its control server as an "_http._tcp" service in the
// "local." domain, with TXT records "board=<board>" and "path=/". The
// announcement is independent of the control server's listener and may be
// made before the server binds.
//
// # Advertising
//
//	adv := discovery.NewMDNSAdvertiser(discovery.AdvertiserConfig{
//	    Hostname: "wifiboot-01",
//	    Board:    "rpi-zero2w",
//	    Port:     80,
//	})
//	if err := adv.Advertise(); err != nil {
//	    // the device still works; it is just not discoverable
//	}
//	defer adv.Shutdown()
//
// # Scanning
//
// Scanner browses "_http._tcp" and keeps entries that carry a "board" TXT
// record:
//
//	devices, err := discovery.ScanForDevices(5 * time.Second)
//
// # Network Requirements
//
// - Requires multicast support on the network interface
// - Devices must be on the same local network segment
// - Firewall must allow mDNS (UDP port 5353)
package discovery
