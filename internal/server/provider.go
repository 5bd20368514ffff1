package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/muurk/wifiboot/internal/logging"
)

// ProviderConfig holds the listener settings passed to Provider.Start.
type ProviderConfig struct {
	Host string
	Port int

	// LingerTimeout is how long an idle keep-alive connection is held open.
	LingerTimeout time.Duration

	// ReadTimeout bounds reading a whole request, body included. Zero
	// means no limit.
	ReadTimeout time.Duration
}

// Route is a single handler bound to a method and path.
type Route struct {
	Method  string
	Path    string
	Handler http.Handler
}

func (r Route) String() string {
	return r.Method + " " + r.Path
}

// Provider is the HTTP service the control server registers its routes on.
type Provider interface {
	Start(cfg ProviderConfig) error
	Register(route Route) error
	Stop(ctx context.Context) error
}

var supportedMethods = map[string]bool{
	http.MethodGet:    true,
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodPatch:  true,
	http.MethodDelete: true,
}

// HTTPProvider is a Provider backed by net/http and a chi router.
//
// Registration builds a new router and swaps it in, so requests never wait
// on a lock. Stop drops every route; the next Start begins empty.
type HTTPProvider struct {
	mu     sync.Mutex
	router atomic.Pointer[chi.Mux]
	routes []Route

	srv      *http.Server
	listener net.Listener
	wg       sync.WaitGroup
}

// NewHTTPProvider creates a provider with request logging and panic recovery
// installed.
func NewHTTPProvider() *HTTPProvider {
	p := &HTTPProvider{}
	p.router.Store(newRouter(nil))
	return p
}

func newRouter(routes []Route) *chi.Mux {
	r := chi.NewRouter()
	r.Use(loggingMiddleware)
	r.Use(recoveryMiddleware)
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "Not Found", http.StatusNotFound)
	})
	for _, route := range routes {
		r.Method(route.Method, route.Path, route.Handler)
	}
	return r
}

// Start binds the listener and serves in the background.
func (p *HTTPProvider) Start(cfg ProviderConfig) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.srv != nil {
		return errors.New("provider already started")
	}

	addr := net.JoinHostPort(cfg.Host, fmt.Sprintf("%d", cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	p.listener = ln
	p.srv = &http.Server{
		Handler:           http.HandlerFunc(p.serveHTTP),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.ReadTimeout,
		IdleTimeout:       cfg.LingerTimeout,
	}

	logging.Info("HTTP provider listening",
		zap.String("addr", ln.Addr().String()),
		zap.Duration("linger", cfg.LingerTimeout),
	)

	srv := p.srv
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("HTTP provider stopped", zap.Error(err))
		}
	}()
	return nil
}

func (p *HTTPProvider) serveHTTP(w http.ResponseWriter, r *http.Request) {
	p.router.Load().ServeHTTP(w, r)
}

// Register binds a route. Each method and path can be registered once.
func (p *HTTPProvider) Register(route Route) error {
	if !supportedMethods[route.Method] {
		return fmt.Errorf("unsupported method %q", route.Method)
	}
	if !strings.HasPrefix(route.Path, "/") {
		return fmt.Errorf("invalid path %q", route.Path)
	}
	if route.Handler == nil {
		return fmt.Errorf("nil handler for %s", route)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	for _, r := range p.routes {
		if r.Method == route.Method && r.Path == route.Path {
			return fmt.Errorf("%w: %s", ErrRouteExists, route)
		}
	}
	routes := append(append([]Route(nil), p.routes...), route)
	p.router.Store(newRouter(routes))
	p.routes = routes
	return nil
}

// Addr returns the bound listener address, or nil before Start.
func (p *HTTPProvider) Addr() net.Addr {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.listener == nil {
		return nil
	}
	return p.listener.Addr()
}

// Stop shuts the server down and drops all routes. In-flight requests get
// until ctx ends; after that their connections are closed.
func (p *HTTPProvider) Stop(ctx context.Context) error {
	p.mu.Lock()
	srv := p.srv
	p.srv = nil
	p.listener = nil
	p.routes = nil
	p.router.Store(newRouter(nil))
	p.mu.Unlock()

	if srv == nil {
		return nil
	}

	err := srv.Shutdown(ctx)
	if err != nil {
		logging.Warn("Closing connections still in flight", zap.Error(err))
		_ = srv.Close()
	}
	p.wg.Wait()
	if err != nil {
		return fmt.Errorf("failed to shut down HTTP provider: %w", err)
	}
	return nil
}
