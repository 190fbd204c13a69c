package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/foxzi/siredir/internal/config"
	"github.com/foxzi/siredir/internal/redirect"
	"github.com/foxzi/siredir/internal/server"
	siredirTLS "github.com/foxzi/siredir/internal/tls"
)

// App is the main application
type App struct {
	config  *config.Config
	rules   *redirect.RuleSet
	handler *redirect.Handler
	server  *server.Server
	tls     *siredirTLS.Setup
	logger  *slog.Logger
}

// New creates a new application. An invalid redirect pattern is returned as
// *redirect.InvalidPatternError and no application is built.
func New(cfg *config.Config) (*App, error) {
	return NewWithLogger(cfg, SetupLogger(cfg.Logging, os.Stdout))
}

// NewWithLogger is New with a caller-supplied logger
func NewWithLogger(cfg *config.Config, logger *slog.Logger) (*App, error) {
	rules, err := cfg.RuleSet()
	if err != nil {
		logger.Error("failed to compile redirect rules", "error", err)
		return nil, fmt.Errorf("failed to build rule set: %w", err)
	}
	logger.Info("redirect rules loaded", "count", rules.Len())

	handler := redirect.NewHandler(rules, logger.With("component", "redirect"))

	tlsSetup, err := siredirTLS.New(cfg.TLS)
	if err != nil {
		return nil, fmt.Errorf("failed to set up TLS: %w", err)
	}

	opts := server.Options{
		Config:    cfg,
		Responder: handler,
		Logger:    logger.With("component", "server"),
	}
	if tlsSetup != nil && cfg.TLS.ListenAddr != "" {
		opts.TLSConfig = tlsSetup.Config
	}
	if tlsSetup != nil && tlsSetup.ACME != nil {
		opts.WrapHTTP = tlsSetup.ACME.HTTPHandler
		logger.Info("ACME (Let's Encrypt) enabled", "domains", tlsSetup.ACME.Domains())
	}

	return &App{
		config:  cfg,
		rules:   rules,
		handler: handler,
		server:  server.New(opts),
		tls:     tlsSetup,
		logger:  logger,
	}, nil
}

// Handler returns the redirect handler
func (a *App) Handler() *redirect.Handler {
	return a.handler
}

// Server returns the HTTP server
func (a *App) Server() *server.Server {
	return a.server
}

// Run starts the listeners and blocks until ctx is done, a signal arrives or a listener fails
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("starting siredir",
		"bind_to", a.config.BindTo,
		"tls_addr", a.config.TLS.ListenAddr,
		"rules", a.rules.Len(),
	)

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	listeners, err := a.server.Listen()
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- a.server.Serve(listeners)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case serveErr = <-errCh:
		if serveErr != nil {
			a.logger.Error("server error", "error", serveErr)
		}
	}

	if err := a.Shutdown(context.Background()); err != nil {
		a.logger.Error("shutdown error", "error", err)
	}

	if serveErr != nil {
		return fmt.Errorf("server: %w", serveErr)
	}
	return nil
}

// Shutdown gracefully shuts down all listeners
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.config.Server.ShutdownTimeout)
	defer cancel()

	err := a.server.Shutdown(shutdownCtx)

	a.logger.Info("shutdown complete")
	return err
}

// SetupLogger creates a logger based on configuration
func SetupLogger(cfg config.LoggingConfig, w io.Writer) *slog.Logger {
	var handler slog.Handler

	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}
