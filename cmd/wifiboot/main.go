// Wifiboot brings a headless Linux device onto a wireless network.
//
// At boot it reads stored network credentials, joins the access point with
// a bounded number of retries, and restarts the device when that fails.
// Once connected it advertises itself over mDNS and serves a small HTTP
// control API for status queries and configuration payloads. The same
// binary carries operator commands for managing credentials and talking to
// devices on the network.
//
// Usage:
//
//	wifiboot run [flags]
//	wifiboot [command] [flags]
//
// See 'wifiboot --help' for available commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/wifiboot/internal/config"
	"github.com/muurk/wifiboot/internal/logging"
	"github.com/muurk/wifiboot/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		logging.Sync()
		os.Exit(1)
	}
	logging.Sync()
}

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "wifiboot",
	Short: "Wireless bring-up daemon for headless devices",
	Long: `Wifiboot joins a headless device to a wireless network at boot and
exposes a small HTTP control API once the network is up.

Run 'wifiboot run' as the device daemon. The remaining commands manage the
stored credentials on the device or talk to devices on the network.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return logging.Initialize(logLevel)
	},
}

func init() {
	// Disable automatic completion command generation
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath, "Path to the configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); empty reads "+logging.LogLevelEnvVar)

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("wifiboot %s\n", version.Full())
	},
}
