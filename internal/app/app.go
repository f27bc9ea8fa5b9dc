package app

import (
	"context"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/syntaxhq/syntax-chat/internal/auth"
	"github.com/syntaxhq/syntax-chat/internal/config"
	"github.com/syntaxhq/syntax-chat/internal/hub"
	"github.com/syntaxhq/syntax-chat/internal/server"
	"github.com/syntaxhq/syntax-chat/internal/store"
	"github.com/syntaxhq/syntax-chat/internal/store/sqlite"
)

// App wires together the store, hub, and transport layers of the chat
// server.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	hub             *hub.Hub
	store           store.Store
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	st, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	logger.Info().Str("db_path", cfg.DatabasePath).Msg("database initialized")

	jwtConfig := &auth.JWTConfig{
		Secret: []byte(cfg.JWTSecret),
		Issuer: cfg.JWTIssuer,
		TTL:    cfg.SessionTTL,
	}
	authService := auth.NewService(st, jwtConfig)

	h := hub.NewHub(st, logger)
	srv := server.New(h, authService, st, cfg, logger)

	return &App{
		server:          srv,
		shutdownTimeout: cfg.ShutdownTimeout,
		hub:             h,
		store:           st,
		log:             logger,
	}, nil
}

// Run starts the HTTP server and blocks until context cancellation or
// fatal error.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go a.hub.Run(ctx)

	go func() {
		if err := a.server.ListenAndServe(); err != nil && err != stdhttp.ErrServerClosed {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		a.cleanup()
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.cleanup()
			return err
		}

		a.cleanup()
		return <-serverErr
	}
}

func (a *App) cleanup() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
