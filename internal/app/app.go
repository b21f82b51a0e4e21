package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"taskgate/internal/config"
	"taskgate/internal/db"
	"taskgate/internal/engine"
	"taskgate/internal/migrate"
	"taskgate/internal/server"
)

const shutdownTimeout = 5 * time.Second

// App bundles the opened database and the engine built on top of it.
type App struct {
	Config *config.Config
	DB     *sql.DB
	Engine engine.Engine
	Logger zerolog.Logger
}

// Open connects to the configured database, applies pending migrations and
// builds the engine.
func Open(cfg *config.Config, logger zerolog.Logger) (*App, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	conn, dialect, err := db.Open(db.Config{
		Driver:    cfg.Database.Driver,
		Workspace: cfg.Database.Workspace,
		DSN:       cfg.Database.DSN,
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	version, err := migrate.Migrate(conn, dialect)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	logger.Debug().
		Str("driver", dialect.Name).
		Int("schema_version", version).
		Msg("database ready")
	e, err := engine.New(conn, dialect, cfg, logger)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return &App{Config: cfg, DB: conn, Engine: e, Logger: logger}, nil
}

func (a *App) Close() error {
	return a.DB.Close()
}

// Handler builds the HTTP API for this app.
func (a *App) Handler() (http.Handler, error) {
	return server.New(server.Config{
		Engine:   a.Engine,
		BasePath: a.Config.Server.BasePath,
		Auth: server.AuthConfig{
			JWTSecret: a.Config.Auth.JWTSecret,
			TokenTTL:  a.Config.Auth.TokenTTL,
		},
		Logger: a.Logger,
	})
}

// Serve runs the HTTP API on addr until ctx is cancelled, then shuts down
// gracefully.
func (a *App) Serve(ctx context.Context, addr string) error {
	handler, err := a.Handler()
	if err != nil {
		return err
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info().Str("addr", addr).Msg("setting up http server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			a.Logger.Error().Err(err).Msg("failed to listen and serve http")
			return err
		}
		return nil
	case <-ctx.Done():
	}

	a.Logger.Info().Msg("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.Logger.Error().Err(err).Msg("failed to shutdown http server")
		return err
	}
	a.Logger.Info().Msg("shut down http server")
	return nil
}
