package supervisor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/wifiboot/internal/connectivity"
	"github.com/muurk/wifiboot/internal/credstore"
	"github.com/muurk/wifiboot/internal/discovery"
	"github.com/muurk/wifiboot/internal/failsafe"
	"github.com/muurk/wifiboot/internal/logging"
	"github.com/muurk/wifiboot/internal/server"
)

const shutdownTimeout = 5 * time.Second

// Store is the credential storage the supervisor reads at boot and the
// provisioning endpoint writes to.
type Store interface {
	Mount() error
	Load() (credstore.Credentials, error)
	Save(credstore.Credentials) error
}

// Config holds the bring-up settings.
type Config struct {
	Connect connectivity.Config
	Server  server.Config

	// Defaults are used when the stored record is missing or unreadable.
	Defaults credstore.Credentials

	// Hostname and Version are reported by the status endpoint.
	Hostname string
	Version  string
}

// Deps are the collaborators the supervisor wires together.
type Deps struct {
	Store      Store
	Stack      connectivity.Stack
	Provider   server.Provider
	Advertiser discovery.Advertiser
	Restarter  failsafe.Restarter
}

// Report describes how a boot went.
type Report struct {
	// Source is where the credentials came from: "store" or "defaults".
	Source string

	StorageErr   error
	ConnectErr   error
	AdvertiseErr error
	ServerErr    error

	// Restarted is set when the restarter was invoked and returned.
	Restarted bool

	Degraded bool
	Snapshot connectivity.Snapshot
}

// Supervisor is the device composition root.
type Supervisor struct {
	cfg        Config
	store      Store
	stack      connectivity.Stack
	manager    *connectivity.Manager
	server     *server.Server
	advertiser discovery.Advertiser
	restarter  failsafe.Restarter
	log        *zap.Logger
}

// New builds a supervisor. A nil Advertiser disables advertisement.
func New(cfg Config, deps Deps) *Supervisor {
	s := &Supervisor{
		cfg:        cfg,
		store:      deps.Store,
		stack:      deps.Stack,
		manager:    connectivity.NewManager(deps.Stack, cfg.Connect),
		advertiser: deps.Advertiser,
		restarter:  deps.Restarter,
		log:        logging.Named("supervisor"),
	}
	if s.advertiser == nil {
		s.advertiser = discovery.NopAdvertiser{}
	}
	s.server = server.New(cfg.Server, deps.Provider, server.StatusFunc(s.status), server.PayloadFunc(s.provision))
	return s
}

// Manager returns the connectivity manager.
func (s *Supervisor) Manager() *connectivity.Manager {
	return s.manager
}

// Server returns the control server.
func (s *Supervisor) Server() *server.Server {
	return s.server
}

// Boot runs the bring-up sequence once. It returns an error only when the
// network could not be joined, after the restarter has been invoked.
func (s *Supervisor) Boot(ctx context.Context) (*Report, error) {
	report := &Report{}

	creds := s.loadCredentials(report)

	s.manager.Configure(creds)
	if err := s.manager.Connect(ctx); err != nil {
		report.ConnectErr = err
		report.Snapshot = s.manager.Snapshot()

		if ctx.Err() != nil {
			// shutdown requested while connecting
			s.log.Info("Boot cancelled", zap.Error(err))
			return report, err
		}

		s.log.Error("Could not join network, restarting", zap.Error(err))
		if rerr := s.restarter.Restart(err); rerr != nil {
			s.log.Error("Restart failed", zap.Error(rerr))
			return report, fmt.Errorf("%w (restart failed: %w)", err, rerr)
		}
		report.Restarted = true
		return report, err
	}
	report.Snapshot = s.manager.Snapshot()

	// advertisement does not depend on the server being bound
	if err := s.advertiser.Advertise(); err != nil {
		report.AdvertiseErr = err
		s.log.Warn("mDNS advertisement failed", zap.Error(err))
	}

	if err := s.server.Start(ctx); err != nil {
		report.ServerErr = err
		s.log.Error("Control server unavailable", zap.Error(err))
		return report, nil
	}
	report.Degraded = s.server.Degraded()

	s.log.Info("Device ready",
		zap.String("ssid", report.Snapshot.SSID),
		zap.Strings("routes", s.server.Registered()),
	)
	return report, nil
}

func (s *Supervisor) loadCredentials(report *Report) credstore.Credentials {
	report.Source = "defaults"

	if err := s.store.Mount(); err != nil {
		report.StorageErr = err
		s.log.Warn("Credential storage unavailable, using defaults", zap.Error(err))
		return s.cfg.Defaults
	}

	creds, err := s.store.Load()
	switch {
	case err != nil:
		report.StorageErr = err
		s.log.Warn("Could not read stored credentials, using defaults", zap.Error(err))
		return s.cfg.Defaults
	case creds.IsZero():
		s.log.Info("No stored credentials, using defaults")
		return s.cfg.Defaults
	}

	report.Source = "store"
	return creds
}

// Run boots the device and serves until ctx is done. The network stack is
// closed on return when it implements io.Closer.
func (s *Supervisor) Run(ctx context.Context) error {
	defer s.closeStack()

	report, err := s.Boot(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}
	if report.ServerErr != nil {
		s.log.Warn("Running without control server")
	}

	<-ctx.Done()
	s.log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	s.advertiser.Shutdown()
	return s.server.Stop(shutdownCtx)
}

func (s *Supervisor) closeStack() {
	c, ok := s.stack.(io.Closer)
	if !ok {
		return
	}
	if err := c.Close(); err != nil {
		s.log.Warn("Failed to close network stack", zap.Error(err))
	}
}

func (s *Supervisor) status() server.Status {
	snap := s.manager.Snapshot()
	return server.Status{
		Hostname: s.cfg.Hostname,
		Version:  s.cfg.Version,
		State:    snap.State.String(),
		SSID:     snap.SSID,
	}
}
