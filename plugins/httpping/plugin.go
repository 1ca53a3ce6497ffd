// Package httpping exposes the watchdog over HTTP.
//
// Routes:
//
//	POST /v1/ping    record a sign of life
//	GET  /v1/status  snapshot of the active run
//	GET  /healthz    200 while running untriggered, 503 otherwise
//	GET  /metrics    Prometheus metrics
package httpping

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bft-labs/canary/pkg/canary"
	"github.com/bft-labs/canary/pkg/log"
	"github.com/bft-labs/canary/pkg/watchdog"
)

const (
	shutdownTimeout   = 5 * time.Second
	readHeaderTimeout = 10 * time.Second
)

// Config holds configuration options for the HTTP ping plugin.
type Config struct {
	// Addr is the listen address, e.g. "127.0.0.1:9187". Port 0 picks a free port.
	Addr string

	// Gatherer backs /metrics. Default: prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer
}

// Plugin serves the watchdog's HTTP surface.
type Plugin struct {
	addr   string
	router *chi.Mux

	mu       sync.RWMutex
	pinger   canary.Pinger
	status   func() (watchdog.Status, bool)
	logger   log.Logger
	server   *http.Server
	listener net.Listener
	done     chan struct{}
}

// New creates an HTTP ping plugin for cfg.
func New(cfg Config) *Plugin {
	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	p := &Plugin{
		addr:   cfg.Addr,
		router: chi.NewRouter(),
		logger: log.NewNoopLogger(),
	}

	p.router.Use(middleware.RequestID)
	p.router.Use(middleware.Recoverer)
	p.router.Use(p.loggingMiddleware)

	p.router.Get("/healthz", p.handleHealthz)
	p.router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	p.router.Route("/v1", func(r chi.Router) {
		r.Post("/ping", p.handlePing)
		r.Get("/status", p.handleStatus)
	})

	return p
}

// Name returns the plugin identifier.
func (p *Plugin) Name() string {
	return "httpping"
}

// Handler returns the plugin's router.
func (p *Plugin) Handler() http.Handler {
	return p.router
}

// Addr returns the bound listen address once initialized.
func (p *Plugin) Addr() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.listener == nil {
		return ""
	}
	return p.listener.Addr().String()
}

// Initialize binds the listen address and starts serving.
func (p *Plugin) Initialize(_ context.Context, cfg canary.PluginConfig) error {
	if p.addr == "" {
		return errors.New("httpping: listen address not configured")
	}

	ln, err := net.Listen("tcp", p.addr)
	if err != nil {
		return fmt.Errorf("httpping: listen on %s: %w", p.addr, err)
	}

	srv := &http.Server{
		Handler:           p.router,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	done := make(chan struct{})

	p.mu.Lock()
	p.pinger = cfg.Pinger
	p.status = cfg.Status
	p.logger = log.OrNoop(cfg.Logger)
	p.server = srv
	p.listener = ln
	p.done = done
	logger := p.logger
	p.mu.Unlock()

	go func() {
		defer close(done)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("httpping: server error", log.Err(err))
		}
	}()

	logger.Info("http ping listening", log.String("addr", ln.Addr().String()))
	return nil
}

// Shutdown gracefully stops the server.
func (p *Plugin) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	srv, done := p.server, p.done
	p.server = nil
	p.mu.Unlock()

	if srv == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	err := srv.Shutdown(ctx)
	<-done
	if err != nil {
		return fmt.Errorf("httpping: shutdown: %w", err)
	}
	return nil
}

// loggingMiddleware logs each request at debug level.
func (p *Plugin) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		p.mu.RLock()
		logger := p.logger
		p.mu.RUnlock()

		logger.Debug("request",
			log.String("method", r.Method),
			log.String("path", r.URL.Path),
			log.Int("status", ww.Status()),
			log.Millis("duration_ms", time.Since(start)),
			log.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

// WithHTTPPing returns a canary Option that registers an HTTP ping server.
func WithHTTPPing(cfg Config) canary.Option {
	return canary.WithPlugin(New(cfg))
}

var _ canary.Plugin = (*Plugin)(nil)
