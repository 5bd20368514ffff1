// Package deviceclient is the operator-side HTTP client for a device's
// control server.
//
// It reads the status document and posts configuration payloads, retrying
// transient failures with exponential backoff. Every error it returns is a
// *DeviceError carrying a category the CLI turns into a short message and a
// troubleshooting hint.
//
//	client := deviceclient.NewClient("192.168.4.16", 80)
//	status, err := client.Info(ctx)
//	if err != nil {
//	    fmt.Println(deviceclient.GetShortErrorMessage(err))
//	}
//
//	_, err = client.PushCredentials(ctx, credstore.Credentials{SSID: "lab", Password: "..."})
package deviceclient
