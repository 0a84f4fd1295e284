// Package app assembles the credential service from configuration: store,
// session backend, identity issuer, HTTP router and server.
package app

import (
	"context"
	"crypto/tls"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/atinyakov/credkeeper/internal/auth"
	"github.com/atinyakov/credkeeper/internal/config"
	"github.com/atinyakov/credkeeper/internal/db"
	"github.com/atinyakov/credkeeper/internal/repository"
	handler "github.com/atinyakov/credkeeper/internal/server/handler/http"
	"github.com/atinyakov/credkeeper/internal/service"
	"github.com/atinyakov/credkeeper/internal/session"
	"go.uber.org/zap"
)

const (
	shutdownTimeout = 10 * time.Second
	sweepInterval   = 10 * time.Minute
)

// App owns every long-lived resource of the server process.
type App struct {
	options *config.Options
	logger  *zap.Logger
	handler http.Handler

	closers []func() error
	cancel  context.CancelFunc
}

// New builds the App described by options. Background workers started here
// stop when Close is called.
func New(ctx context.Context, options *config.Options, logger *zap.Logger) (*App, error) {
	bgCtx, cancel := context.WithCancel(context.Background())
	a := &App{options: options, logger: logger, cancel: cancel}

	repo, backend, err := a.initStore(ctx, bgCtx)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	svc := service.NewAuthService(repo, nil)
	if created, err := svc.Seed(ctx, options.SeedIdentifier, options.SeedSecret); err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("seed default credential: %w", err)
	} else if created {
		logger.Info("seeded default credential", zap.String("identifier", options.SeedIdentifier))
	}

	issuer := a.initIssuer(backend)

	authHandler := &handler.AuthHandler{AuthService: svc, Issuer: issuer, Logger: logger}
	a.handler = handler.NewRouter(authHandler, logger, handler.RouterOptions{
		AllowedOrigins: options.AllowedOrigins,
	})
	return a, nil
}

func (a *App) initStore(ctx, bgCtx context.Context) (service.CredentialRepository, session.Backend, error) {
	switch a.options.Store {
	case config.StorePostgres:
		sqlDB, err := db.InitPostgres(ctx, a.options.DatabaseDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("cannot init database: %w", err)
		}
		a.closers = append(a.closers, sqlDB.Close)
		a.startSweeper(bgCtx, sqlDB)
		return repository.NewPostgresCredentialRepository(sqlDB), session.NewPostgresBackend(sqlDB), nil

	case config.StoreRedis:
		client, err := db.InitRedis(ctx, a.options.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("cannot init redis: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		return repository.NewRedisCredentialRepository(client, ""), session.NewRedisBackend(client, ""), nil

	default:
		backend := session.NewMemoryBackend()
		if a.options.AuthMode == config.AuthSession {
			backend.StartPurger(bgCtx, sweepInterval, a.logger)
		}
		return repository.NewMemoryCredentialRepository(), backend, nil
	}
}

func (a *App) startSweeper(ctx context.Context, sqlDB *sql.DB) {
	if a.options.AuthMode != config.AuthSession {
		return
	}
	db.StartSessionSweeper(ctx, sqlDB, sweepInterval, a.logger)
}

func (a *App) initIssuer(backend session.Backend) auth.Issuer {
	cookies := auth.CookieOptions{Secure: a.options.CookieSecure, TTL: a.options.TokenTTL}
	key := []byte(a.options.SecretKey)

	if a.options.AuthMode == config.AuthSession {
		return auth.NewSessionIssuer(session.NewStore(backend, key), cookies)
	}
	return auth.NewTokenIssuer(key, cookies)
}

// Handler returns the HTTP handler serving the API.
func (a *App) Handler() http.Handler {
	return a.handler
}

// Run serves HTTP (or HTTPS when a certificate is configured) until ctx is
// cancelled, then shuts the server down gracefully.
func (a *App) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              a.options.Port,
		Handler:           a.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	if a.options.TLSEnabled() {
		server.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	errCh := make(chan error, 1)
	go func() {
		var err error
		if a.options.TLSEnabled() {
			a.logger.Info("starting HTTPS server", zap.String("addr", server.Addr))
			err = server.ListenAndServeTLS(a.options.TLSCert, a.options.TLSKey)
		} else {
			a.logger.Info("starting HTTP server", zap.String("addr", server.Addr))
			err = server.ListenAndServe()
		}
		errCh <- err
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	a.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close stops background workers and releases store connections.
func (a *App) Close() error {
	a.cancel()
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
