package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/muurk/wifiboot/internal/logging"
)

const (
	DefaultPort          = 80
	DefaultLingerTimeout = 5 * time.Second
	DefaultReadTimeout   = 10 * time.Second
	DefaultBasePath      = "/www"

	// ScratchSize is the capacity of the per-request staging buffer. The
	// largest accepted payload is one byte less, leaving room for the
	// terminating NUL.
	ScratchSize = 1024

	InfoPath      = "/api/v1/info"
	SystemSetPath = "/api/v1/systemset"
)

// Config holds the control server configuration
type Config struct {
	Host          string
	Port          int
	LingerTimeout time.Duration
	BasePath      string

	// ReadTimeout bounds how long a client may take to send a request.
	// A body that stalls past it is answered as a transport fault.
	ReadTimeout time.Duration
}

// DefaultConfig returns the stock listener settings.
func DefaultConfig() Config {
	return Config{
		Port:          DefaultPort,
		LingerTimeout: DefaultLingerTimeout,
		BasePath:      DefaultBasePath,
		ReadTimeout:   DefaultReadTimeout,
	}
}

// serverContext is the per-server state shared by the handlers.
type serverContext struct {
	basePath string
	scratch  sync.Pool
}

func newServerContext(basePath string) *serverContext {
	c := &serverContext{basePath: basePath}
	c.scratch.New = func() any {
		return new([ScratchSize]byte)
	}
	return c
}

func (c *serverContext) acquire() *[ScratchSize]byte {
	return c.scratch.Get().(*[ScratchSize]byte)
}

func (c *serverContext) release(buf *[ScratchSize]byte) {
	c.scratch.Put(buf)
}

// Server is the device control server.
type Server struct {
	cfg      Config
	provider Provider
	status   StatusSource
	sink     PayloadSink
	log      *zap.Logger

	mu         sync.Mutex
	sctx       *serverContext
	registered []string
	running    bool

	degraded atomic.Bool
}

// New creates a control server. status and sink may be nil. A zero Port
// binds an ephemeral port.
func New(cfg Config, provider Provider, status StatusSource, sink PayloadSink) *Server {
	if cfg.LingerTimeout == 0 {
		cfg.LingerTimeout = DefaultLingerTimeout
	}
	if cfg.BasePath == "" {
		cfg.BasePath = DefaultBasePath
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	return &Server{
		cfg:      cfg,
		provider: provider,
		status:   status,
		sink:     sink,
		log:      logging.Named("server"),
	}
}

// Start starts the provider and registers the status and configuration-write
// routes. Registering one of the two is enough to keep running; see Degraded.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("%w: already running", ErrStartFailure)
	}

	err := s.provider.Start(ProviderConfig{
		Host:          s.cfg.Host,
		Port:          s.cfg.Port,
		LingerTimeout: s.cfg.LingerTimeout,
		ReadTimeout:   s.cfg.ReadTimeout,
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStartFailure, err)
	}

	sctx := newServerContext(s.cfg.BasePath)
	routes := []Route{
		{Method: http.MethodGet, Path: InfoPath, Handler: s.infoHandler()},
		{Method: http.MethodPost, Path: SystemSetPath, Handler: s.systemSetHandler(sctx)},
	}

	var registered []string
	for _, route := range routes {
		if err := s.provider.Register(route); err != nil {
			s.log.Error("Failed to register handler",
				zap.Stringer("route", route),
				zap.Error(err),
			)
			continue
		}
		registered = append(registered, route.String())
	}

	if len(registered) == 0 {
		if err := s.provider.Stop(ctx); err != nil {
			s.log.Warn("Failed to stop provider", zap.Error(err))
		}
		return ErrNoHandlersRegistered
	}

	s.sctx = sctx
	s.registered = registered
	s.running = true
	s.degraded.Store(len(registered) < len(routes))

	if s.degraded.Load() {
		s.log.Warn("Control server running degraded", zap.Strings("routes", registered))
	} else {
		s.log.Info("Control server started",
			zap.Int("port", s.cfg.Port),
			zap.String("base_path", sctx.basePath),
		)
	}
	return nil
}

// Stop stops the provider and releases the server context.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.running = false
	s.sctx = nil
	s.registered = nil
	s.degraded.Store(false)

	s.log.Info("Stopping control server")
	return s.provider.Stop(ctx)
}

// Degraded reports whether the server is running with only some routes.
func (s *Server) Degraded() bool {
	return s.degraded.Load()
}

// Registered returns the routes that are live, as "METHOD /path".
func (s *Server) Registered() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.registered...)
}

// Running reports whether Start succeeded and Stop has not been called.
func (s *Server) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
