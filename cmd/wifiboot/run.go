package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/wifiboot/internal/config"
	"github.com/muurk/wifiboot/internal/connectivity"
	"github.com/muurk/wifiboot/internal/credstore"
	"github.com/muurk/wifiboot/internal/discovery"
	"github.com/muurk/wifiboot/internal/failsafe"
	"github.com/muurk/wifiboot/internal/logging"
	"github.com/muurk/wifiboot/internal/server"
	"github.com/muurk/wifiboot/internal/supervisor"
	"github.com/muurk/wifiboot/internal/version"
	"github.com/muurk/wifiboot/internal/wifi"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the bring-up daemon",
	Long: `Run the device bring-up sequence and serve the control API.

The daemon loads stored credentials (falling back to the configured
defaults), joins the access point and, once an address is acquired,
advertises itself over mDNS and starts the HTTP control server.

If the network cannot be joined the device is restarted. Set
failsafe.mode to "exit" to leave the restart to a service manager.`,
	Example: `  # Run with the default configuration file
  wifiboot run

  # Bench run against the in-memory network stack
  wifiboot run --config ./bench.yaml --log-level debug`,
	RunE: runDaemon,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runDaemon(cmd *cobra.Command, args []string) error {
	if logLevel == "" && os.Getenv(logging.LogLevelEnvVar) == "" {
		if err := logging.Initialize("info"); err != nil {
			return err
		}
	}
	log := logging.Named("main")

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	restarter, err := failsafe.New(cfg.Failsafe.Mode, cfg.Failsafe.ExitCode)
	if err != nil {
		return err
	}

	stack, err := newStack(cfg)
	if err != nil {
		return err
	}

	hostname := cfg.Device.Hostname
	if hostname == "" {
		if hostname, err = os.Hostname(); err != nil {
			log.Warn("Could not read system hostname", zap.Error(err))
		}
	}

	var advertiser discovery.Advertiser
	if cfg.Device.Advertise {
		advertiser = discovery.NewMDNSAdvertiser(discovery.AdvertiserConfig{
			Instance:  cfg.Device.Instance,
			Hostname:  cfg.Device.Hostname,
			Board:     cfg.Device.Board,
			Port:      cfg.Server.Port,
			Interface: cfg.Network.Interface,
		})
	}

	sup := supervisor.New(supervisor.Config{
		Connect: connectivity.Config{
			MaxAttempts: cfg.Network.MaxRetries,
			Timeout:     cfg.Network.ConnectTimeout,
		},
		Server: server.Config{
			Host:          cfg.Server.Host,
			Port:          cfg.Server.Port,
			LingerTimeout: cfg.Server.LingerTimeout,
			BasePath:      cfg.Server.BasePath,
			ReadTimeout:   cfg.Server.ReadTimeout,
		},
		Defaults: cfg.DefaultCredentials(),
		Hostname: hostname,
		Version:  version.Version,
	}, supervisor.Deps{
		Store:      credstore.New(cfg.Storage.DataDir),
		Stack:      stack,
		Provider:   server.NewHTTPProvider(),
		Advertiser: advertiser,
		Restarter:  restarter,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("Starting wifiboot",
		zap.String("version", version.Full()),
		zap.String("config", configPath),
		zap.String("stack", cfg.Network.Stack),
		zap.String("hostname", hostname),
	)
	return sup.Run(ctx)
}

func newStack(cfg *config.Config) (connectivity.Stack, error) {
	switch cfg.Network.Stack {
	case config.StackSupplicant:
		return wifi.NewSupplicant(wifi.SupplicantConfig{
			Interface:      cfg.Network.Interface,
			ControlDir:     cfg.Network.ControlDir,
			AddressTimeout: cfg.Network.AddressTimeout,
		}), nil
	case config.StackSimulator:
		return wifi.NewSimulator(cfg.Network.Simulated), nil
	default:
		return nil, fmt.Errorf("unknown network stack %q", cfg.Network.Stack)
	}
}
