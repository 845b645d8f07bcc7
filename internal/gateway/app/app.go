package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"labsite/internal/gateway/config"
	"labsite/internal/gateway/handler"
	"labsite/internal/gateway/server"
	"labsite/internal/gateway/session"
	"labsite/internal/media"
	"labsite/internal/popup"
	"labsite/internal/simulation"
)

type App struct {
	server          *server.Server
	registry        *session.Registry
	archive         *media.FrameArchive
	stores          *gatewayStores
	shutdownTimeout time.Duration
}

func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return NewWithConfig(context.Background(), cfg)
}

func NewWithConfig(ctx context.Context, cfg *config.Config) (*App, error) {
	if _, err := simulation.NewController(cfg.SimBackendURL); err != nil {
		return nil, fmt.Errorf("invalid simulation backend: %w", err)
	}
	stores, err := initStores(ctx, cfg)
	if err != nil {
		return nil, err
	}

	archive := media.NewFrameArchive(stores.media, 0)
	registry := session.NewRegistry(controllerFactory(cfg.SimBackendURL, archive), cfg.MaxSessions, cfg.SessionTTL)

	var gateOpts []popup.GateOption
	if cfg.PopupExpiry == config.PopupExpiryEndOfDay {
		gateOpts = append(gateOpts, popup.WithDurableExpiry(popup.EndOfDay(cfg.PopupLocation)))
	}

	router := server.NewRouter(server.Handlers{
		Popup:          handler.NewPopupHandler(stores.popups, stores.durable, stores.session, gateOpts...),
		Simulation:     handler.NewSimulationHandler(registry, archive),
		Media:          handler.NewMediaHandler(stores.media),
		SecureCookie:   strings.HasPrefix(cfg.PublicBaseURL, "https://"),
		AllowedOrigins: cfg.AllowedOrigins,
	})

	log.Printf("app: env=%s sim_backend=%s max_sessions=%d session_ttl=%s", cfg.Env, cfg.SimBackendURL, cfg.MaxSessions, cfg.SessionTTL)
	shutdownTimeout := cfg.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &App{
		server:          server.New(cfg.Port, router),
		registry:        registry,
		archive:         archive,
		stores:          stores,
		shutdownTimeout: shutdownTimeout,
	}, nil
}

// controllerFactory gives every site session its own controller; finished
// runs have their last frame archived.
func controllerFactory(backendURL string, archive *media.FrameArchive) session.Factory {
	return func(sessionID string) (*simulation.Controller, error) {
		return simulation.NewController(backendURL, simulation.WithObserver(func(evt simulation.Event) {
			if evt.Kind == simulation.EventStatus && evt.Snapshot.Status.Terminal() {
				log.Printf("app: simulation finished session=%s run=%d task_id=%s status=%s error=%q",
					sessionID, evt.Session, evt.Snapshot.TaskID, evt.Snapshot.Status, evt.Snapshot.ErrorMessage)
			}
			archive.Observe(evt)
		}))
	}
}

// Run serves until ctx is done or the listener fails, then shuts down
// within the configured timeout. A listener failure is returned after the
// stores are released.
func (a *App) Run(ctx context.Context) error {
	serveErr := make(chan error, 1)
	go func() { serveErr <- a.server.Start() }()

	var runErr error
	select {
	case runErr = <-serveErr:
		log.Printf("app: server stopped err=%v", runErr)
	case <-ctx.Done():
		log.Printf("app: shutting down addr=%s timeout=%s", a.server.Addr(), a.shutdownTimeout)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
	defer cancel()
	if err := a.Shutdown(shutdownCtx); err != nil {
		runErr = errors.Join(runErr, fmt.Errorf("forced shutdown: %w", err))
	}
	return runErr
}

// Addr is where the server is listening once Run has started it.
func (a *App) Addr() string {
	return a.server.Addr()
}

// Shutdown stops accepting requests, closes every simulation stream, waits
// for pending frame uploads and releases the stores.
func (a *App) Shutdown(ctx context.Context) error {
	err := a.server.Shutdown(ctx)
	a.registry.Close()
	a.archive.Flush()
	return errors.Join(err, a.stores.Close())
}
