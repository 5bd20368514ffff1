package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/muurk/wifiboot/internal/config"
	"github.com/muurk/wifiboot/internal/credstore"
	"github.com/muurk/wifiboot/internal/deviceclient"
	"github.com/muurk/wifiboot/internal/discovery"
	"github.com/muurk/wifiboot/internal/server"
	"github.com/muurk/wifiboot/internal/ui"
)

// Device command flags
var (
	deviceHost   string
	devicePort   int
	scanTimeout  int
	outputFormat string
	pushFile     string
	pushSSID     string
	credSSID     string
	credPassword string
	dataDir      string
	forceInit    bool
	assumeYes    bool
)

func init() {
	for _, cmd := range []*cobra.Command{infoCmd, pushCmd} {
		cmd.Flags().StringVar(&deviceHost, "device", "", "Device address or hostname (skips discovery)")
		cmd.Flags().IntVar(&devicePort, "port", server.DefaultPort, "Device HTTP port")
	}
	infoCmd.Flags().StringVar(&outputFormat, "format", "detailed", "Output format (detailed, json)")
	scanCmd.Flags().IntVar(&scanTimeout, "timeout", int(discovery.DefaultScanTimeout/time.Second), "Scan timeout in seconds")

	pushCmd.Flags().StringVar(&pushFile, "file", "", "File whose contents are sent as the payload (- for stdin)")
	pushCmd.Flags().StringVar(&pushSSID, "ssid", "", "Provision credentials for this network instead of sending a file")
	pushCmd.Flags().StringVar(&credPassword, "password", "", "Passphrase for --ssid (prompted when omitted)")

	credsCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "Credential data directory (default from configuration)")
	credsSetCmd.Flags().StringVar(&credSSID, "ssid", "", "Network name")
	credsSetCmd.Flags().StringVar(&credPassword, "password", "", "Passphrase (prompted when omitted)")
	_ = credsSetCmd.MarkFlagRequired("ssid")
	credsClearCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Do not ask for confirmation")
	credsCmd.AddCommand(credsShowCmd, credsSetCmd, credsClearCmd)

	configInitCmd.Flags().BoolVar(&forceInit, "force", false, "Overwrite an existing configuration file")
	configCmd.AddCommand(configInitCmd, configShowCmd)

	rootCmd.AddCommand(scanCmd, infoCmd, pushCmd, credsCmd, configCmd)
}

// scanCmd discovers devices on the network
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan for wifiboot devices on the network",
	Long: `Scan for wifiboot devices using mDNS/DNS-SD discovery.

Devices announce their control server as an _http._tcp service with a
"board" TXT record once they have joined a network.`,
	Example: `  # Scan for 10 seconds (default)
  wifiboot scan

  # Quick 3-second scan
  wifiboot scan --timeout 3`,
	RunE: runScan,
}

func runScan(cmd *cobra.Command, args []string) error {
	fmt.Printf("Scanning for wifiboot devices (timeout: %ds)...\n\n", scanTimeout)

	devices, err := discovery.ScanForDevices(time.Duration(scanTimeout) * time.Second)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	if len(devices) == 0 {
		fmt.Println("No devices found.")
		fmt.Println("\nTroubleshooting:")
		fmt.Println("  - Devices only advertise after joining the network")
		fmt.Println("  - Check that multicast is allowed between you and the device")
		fmt.Println("  - Try increasing --timeout for slower networks")
		return nil
	}

	fmt.Printf("Found %d device(s):\n\n", len(devices))
	for i, device := range devices {
		fmt.Printf("%d. %s\n", i+1, device.Hostname)
		fmt.Printf("   Instance: %s\n", device.Instance)
		fmt.Printf("   Board:    %s\n", device.Board)
		fmt.Printf("   Address:  %s\n", device.Addr())
		fmt.Println()
	}

	fmt.Println("Use 'wifiboot info --device <ip>' to query a device")
	return nil
}

// infoCmd queries a device's status document
var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show device status",
	Long:  `Fetch the status document a device serves on ` + server.InfoPath + `.`,
	Example: `  # Query the only device on the network
  wifiboot info

  # Query a specific device as JSON
  wifiboot info --device 192.168.4.16 --format json`,
	RunE: runInfo,
}

func runInfo(cmd *cobra.Command, args []string) error {
	client, err := newDeviceClient()
	if err != nil {
		return err
	}

	status, err := client.Info(cmd.Context())
	if err != nil {
		return deviceFailure(err)
	}

	if outputFormat == "json" {
		data, err := json.MarshalIndent(status, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	fmt.Println(ui.NewSuccessResult("Device status").
		AddDetail("Device", client.BaseURL).
		AddDetail("Message", status.Message).
		AddDetail("Info", status.ExterInfo).
		AddDetail("Hostname", status.Hostname).
		AddDetail("Version", status.Version).
		AddDetail("State", status.State).
		AddDetail("Network", status.SSID).
		Render())
	return nil
}

// pushCmd sends a configuration payload
var pushCmd = &cobra.Command{
	Use:   "push",
	Short: "Send a configuration payload to a device",
	Long: `Post a configuration payload to a device's ` + server.SystemSetPath + ` endpoint.

Payloads must be under 1024 bytes. A JSON object with an "ssid" key
replaces the device's stored credentials; they take effect at the device's
next boot.`,
	Example: `  # Send a file
  wifiboot push --device 192.168.4.16 --file settings.json

  # Provision new network credentials
  wifiboot push --device 192.168.4.16 --ssid lab`,
	RunE: runPush,
}

func runPush(cmd *cobra.Command, args []string) error {
	if (pushFile == "") == (pushSSID == "") {
		return errors.New("exactly one of --file or --ssid is required")
	}

	client, err := newDeviceClient()
	if err != nil {
		return err
	}

	var reply string
	if pushSSID != "" {
		password, err := readPassword(cmd)
		if err != nil {
			return err
		}
		creds, err := credstore.NewCredentials(pushSSID, password)
		if err != nil {
			return err
		}
		reply, err = client.PushCredentials(cmd.Context(), creds)
		if err != nil {
			return deviceFailure(err)
		}
	} else {
		payload, err := readPayload(cmd.InOrStdin(), pushFile)
		if err != nil {
			return err
		}
		reply, err = client.Push(cmd.Context(), payload)
		if err != nil {
			return deviceFailure(err)
		}
	}

	fmt.Println(ui.NewSuccessResult("Payload delivered").
		AddDetail("Device", client.BaseURL).
		AddDetail("Reply", reply).
		Render())
	return nil
}

func readPayload(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(io.LimitReader(stdin, deviceclient.MaxPayload+1))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read payload: %w", err)
	}
	return data, nil
}

// credsCmd manages the credential record on this device
var credsCmd = &cobra.Command{
	Use:   "creds",
	Short: "Manage the stored network credentials",
	Long: `Show, replace or clear the credential record read at boot.

These commands operate on the local data directory, so run them on the
device itself. New credentials take effect at the next boot.`,
}

var credsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the stored credentials (passphrase masked)",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		creds, err := store.Load()
		if err != nil {
			return err
		}
		if creds.IsZero() {
			fmt.Println("No credentials stored; the configured defaults are used at boot.")
			return nil
		}
		fmt.Println(creds)
		return nil
	},
}

var credsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Replace the stored credentials",
	Example: `  wifiboot creds set --ssid lab
  wifiboot creds set --ssid cafe --password ""`,
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := readPassword(cmd)
		if err != nil {
			return err
		}
		creds, err := credstore.NewCredentials(credSSID, password)
		if err != nil {
			return err
		}

		store, err := openStore()
		if err != nil {
			return err
		}
		if err := store.Save(creds); err != nil {
			return err
		}
		fmt.Printf("✓ Stored %s in %s\n", creds, store.Path())
		return nil
	},
}

var credsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove the stored credentials",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		if !assumeYes && !ui.Confirm(os.Stdin, os.Stdout, "Clear stored credentials",
			[]string{
				"The record in " + store.Path() + " will be removed",
				"The next boot uses the configured default credentials",
			}, "clear") {
			return nil
		}
		if err := store.Clear(); err != nil {
			return err
		}
		fmt.Println("✓ Credentials cleared")
		return nil
	},
}

// configCmd manages the daemon configuration file
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with default values",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := os.Stat(configPath); err == nil && !forceInit {
			return fmt.Errorf("%s already exists (use --force to overwrite)", configPath)
		}
		if err := config.Default().Save(configPath); err != nil {
			return err
		}
		fmt.Printf("✓ Wrote %s\n", configPath)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if cfg.Network.DefaultPass != "" {
			cfg.Network.DefaultPass = "********"
		}
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
		fmt.Print(string(data))
		return nil
	},
}

// openStore mounts the credential store named by --data-dir or the configuration.
func openStore() (*credstore.Store, error) {
	dir := dataDir
	if dir == "" {
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		dir = cfg.Storage.DataDir
	}

	store := credstore.New(dir)
	if err := store.Mount(); err != nil {
		return nil, err
	}
	return store, nil
}

// readPassword returns --password when given, otherwise prompts without echo.
func readPassword(cmd *cobra.Command) (string, error) {
	if cmd.Flags().Changed("password") {
		return credPassword, nil
	}

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("--password is required when stdin is not a terminal")
	}

	fmt.Print("Passphrase (empty for an open network): ")
	pw, err := term.ReadPassword(fd)
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("failed to read passphrase: %w", err)
	}
	return string(pw), nil
}

// newDeviceClient builds a client for --device, or for the single device
// found by a short scan.
func newDeviceClient() (*deviceclient.Client, error) {
	if deviceHost != "" {
		return deviceclient.NewClient(deviceHost, devicePort), nil
	}

	fmt.Println("No device specified, attempting auto-discovery...")
	devices, err := discovery.QuickScan()
	if err != nil {
		return nil, fmt.Errorf("discovery failed: %w", err)
	}

	switch len(devices) {
	case 0:
		return nil, errors.New("no devices found. Use --device to specify an address")
	case 1:
		fmt.Printf("Found device: %s\n\n", devices[0])
		return deviceclient.NewClientWithURL(devices[0].BaseURL()), nil
	default:
		names := make([]string, len(devices))
		for i, d := range devices {
			names[i] = fmt.Sprintf("  %d. %s (%s)", i+1, d.Hostname, d.Addr())
		}
		return nil, fmt.Errorf("multiple devices found, use --device to pick one:\n%s", strings.Join(names, "\n"))
	}
}

// deviceFailure prints a failure box with troubleshooting advice and
// returns a short error.
func deviceFailure(err error) error {
	short := errors.New(deviceclient.GetShortErrorMessage(err))
	hint := deviceclient.GetTroubleshootingHint(err)

	tips := ui.SplitHint(hint)
	if len(tips) == 0 {
		tips = []string{hint}
	}
	fmt.Fprintln(os.Stderr, ui.NewFailureResult("Device request failed", short, tips).Render())
	return short
}
