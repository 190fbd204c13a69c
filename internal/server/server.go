// Package server runs the HTTP(S) listeners that front the redirect handler
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/foxzi/siredir/internal/config"
	"github.com/foxzi/siredir/internal/ipfilter"
	"github.com/foxzi/siredir/internal/ratelimit"
	"github.com/foxzi/siredir/internal/redirect"
)

// Options configures a Server
type Options struct {
	Config    *config.Config
	Responder redirect.Responder
	Logger    *slog.Logger

	// TLSConfig enables the HTTPS listener on Config.TLS.ListenAddr
	TLSConfig *tls.Config

	// WrapHTTP wraps the plain HTTP handler, e.g. for ACME HTTP-01 challenges
	WrapHTTP func(http.Handler) http.Handler
}

// Server serves every path on every configured address with one Responder
type Server struct {
	router  *chi.Mux
	config  *config.Config
	logger  *slog.Logger
	tls     *tls.Config
	wrap    func(http.Handler) http.Handler
	filter  *ipfilter.Filter
	limiter *ratelimit.Throttle

	mu      sync.Mutex
	servers []*http.Server
	closed  bool
}

// New creates a server
func New(opts Options) *Server {
	s := &Server{
		router:  chi.NewRouter(),
		config:  opts.Config,
		logger:  opts.Logger,
		tls:     opts.TLSConfig,
		wrap:    opts.WrapHTTP,
		filter:  ipfilter.New(opts.Config.Server.AllowedIPs, opts.Logger.With("component", "ipfilter")),
		limiter: ratelimit.New(opts.Config.Server.RateLimit.RequestsPerSecond),
	}

	s.setupRoutes(opts.Responder)
	return s
}

// setupRoutes configures middleware and the catch-all route
func (s *Server) setupRoutes(responder redirect.Responder) {
	s.router.Use(s.requestID)
	s.router.Use(s.filter.Middleware)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Recoverer)
	s.router.Use(s.limiter.Middleware)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		redirect.WriteResponse(w, responder.Respond(r))
	})

	s.router.Handle("/*", handler)
	s.router.NotFound(handler)
	s.router.MethodNotAllowed(handler)
}

// Handler returns the root handler shared by all listeners
func (s *Server) Handler() http.Handler {
	return s.router
}

// Addrs returns the plain HTTP addresses followed by the HTTPS one, if any
func (s *Server) Addrs() []string {
	addrs := append([]string{}, s.config.BindTo...)
	if s.tls != nil && s.config.TLS.ListenAddr != "" {
		addrs = append(addrs, s.config.TLS.ListenAddr)
	}
	return addrs
}

func (s *Server) newHTTPServer(addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:           addr,
		Handler:        h,
		ReadTimeout:    s.config.Server.ReadTimeout,
		WriteTimeout:   s.config.Server.WriteTimeout,
		IdleTimeout:    s.config.Server.IdleTimeout,
		MaxHeaderBytes: s.config.Server.MaxHeaderBytes,
	}
}

// Listen binds every configured address. Nothing is served until Serve.
func (s *Server) Listen() ([]net.Listener, error) {
	var listeners []net.Listener
	for _, addr := range s.Addrs() {
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			for _, l := range listeners {
				l.Close()
			}
			return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
		}
		listeners = append(listeners, ln)
	}
	return listeners, nil
}

// Serve serves on listeners returned by Listen until Shutdown.
// The first listener error is returned; http.ErrServerClosed is not an error.
func (s *Server) Serve(listeners []net.Listener) error {
	plain := http.Handler(s.router)
	if s.wrap != nil {
		plain = s.wrap(plain)
	}

	errCh := make(chan error, len(listeners))
	var wg sync.WaitGroup

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		for _, ln := range listeners {
			ln.Close()
		}
		return nil
	}
	for i, ln := range listeners {
		secure := s.tls != nil && i >= len(s.config.BindTo)

		var srv *http.Server
		if secure {
			srv = s.newHTTPServer(ln.Addr().String(), s.router)
			srv.TLSConfig = s.tls
		} else {
			srv = s.newHTTPServer(ln.Addr().String(), plain)
		}
		s.servers = append(s.servers, srv)

		wg.Add(1)
		go func(srv *http.Server, ln net.Listener, secure bool) {
			defer wg.Done()

			var err error
			if secure {
				s.logger.Info("starting HTTPS listener", "addr", ln.Addr().String())
				err = srv.ServeTLS(ln, "", "")
			} else {
				s.logger.Info("starting HTTP listener", "addr", ln.Addr().String())
				err = srv.Serve(ln)
			}
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("listener %s: %w", ln.Addr(), err)
			}
		}(srv, ln, secure)
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case err := <-errCh:
		return err
	case <-done:
		select {
		case err := <-errCh:
			return err
		default:
			return nil
		}
	}
}

// ListenAndServe binds all addresses and serves until Shutdown
func (s *Server) ListenAndServe() error {
	listeners, err := s.Listen()
	if err != nil {
		return err
	}
	return s.Serve(listeners)
}

// Shutdown gracefully stops all listeners
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down listeners")

	s.mu.Lock()
	s.closed = true
	servers := s.servers
	s.mu.Unlock()

	var errs []error
	for _, srv := range servers {
		if err := srv.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", srv.Addr, err))
		}
	}
	return errors.Join(errs...)
}
