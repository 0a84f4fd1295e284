// Package main starts the credential server: it loads configuration,
// initializes logging, builds the application and serves until
// SIGINT or SIGTERM.
package main

import (
	"cmp"
	"context"
	"fmt"
	stdlog "log"
	"os/signal"
	"syscall"

	"github.com/atinyakov/credkeeper/internal/app"
	"github.com/atinyakov/credkeeper/internal/config"
	"github.com/atinyakov/credkeeper/internal/logger"
	"go.uber.org/zap"
)

var (
	// version holds the build version set via ldflags.
	version string
	// buildDate holds the build timestamp set via ldflags.
	buildDate string
)

func main() {
	// Parse command-line, environment and file configuration.
	options := config.Parse()

	// Print build metadata (or "N/A" if unset).
	fmt.Printf("Build version: %s\n", cmp.Or(version, "N/A"))
	fmt.Printf("Build date: %s\n", cmp.Or(buildDate, "N/A"))

	// Initialize structured logging.
	log := logger.New()
	if err := log.Init(options.LogLevel); err != nil {
		stdlog.Fatalf("failed to init logger: %v", err)
	}
	defer func() { _ = log.Log.Sync() }()
	zapLogger := log.Log

	if options.SecretGenerated {
		zapLogger.Warn("no secret key configured; generated a random one, sessions and tokens will not survive a restart")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, options, zapLogger)
	if err != nil {
		zapLogger.Fatal("cannot init application", zap.Error(err))
	}
	defer func() { _ = application.Close() }()

	zapLogger.Info("configuration loaded",
		zap.String("store", options.Store),
		zap.String("auth_mode", options.AuthMode),
		zap.Bool("tls", options.TLSEnabled()),
	)

	if err := application.Run(ctx); err != nil {
		zapLogger.Error("server stopped with error", zap.Error(err))
	}
}
