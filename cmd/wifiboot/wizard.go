package main

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/muurk/wifiboot/internal/discovery"
	"github.com/muurk/wifiboot/internal/server"
	"github.com/muurk/wifiboot/internal/wizard/tui"
)

var (
	wizardHost string
	wizardPort int
)

func init() {
	wizardCmd.Flags().StringVar(&wizardHost, "device", "", "Open the dashboard for this address instead of scanning")
	wizardCmd.Flags().IntVar(&wizardPort, "port", server.DefaultPort, "Device HTTP port")
	rootCmd.AddCommand(wizardCmd)
}

var wizardCmd = &cobra.Command{
	Use:   "wizard",
	Short: "Interactive device discovery and provisioning",
	Long: `Start the interactive wizard.

The wizard scans the network for wifiboot devices, shows the status of the
one you pick, and lets you push new network credentials to it. Credentials
are stored on the device and used from its next boot.`,
	RunE: runWizard,
}

func runWizard(cmd *cobra.Command, args []string) error {
	var device *discovery.Device
	if wizardHost != "" {
		device = &discovery.Device{
			Instance:     "manual",
			Hostname:     wizardHost,
			IP:           wizardHost,
			Port:         wizardPort,
			DiscoveredAt: time.Now(),
		}
	}

	p := tea.NewProgram(tui.NewAppModel(tui.DefaultScan, tui.DefaultClient, device), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("wizard error: %w", err)
	}
	return nil
}
