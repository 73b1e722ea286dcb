package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	authhttp "github.com/mentis-project/accounts/internal/auth/http"
	"github.com/mentis-project/accounts/internal/common/bootstrap"
	"github.com/mentis-project/accounts/internal/common/config"
	commonhttp "github.com/mentis-project/accounts/internal/common/http"
	"github.com/mentis-project/accounts/internal/common/logger"
	srv "github.com/mentis-project/accounts/internal/common/server"
	"github.com/mentis-project/accounts/internal/common/tracing"
)

const serviceName = "accounts"

func main() {
	cfg, err := config.LoadAuthConfig()
	if err != nil {
		logger.NewWithWriter(os.Stderr, serviceName, "info").Criticalf("failed to load config: %v", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogDir, serviceName, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := tracing.Setup(ctx, serviceName, cfg.OTelEndpoint)
	if err != nil {
		log.Fatalf("failed to initialize tracing: %v", err)
	}

	app, err := bootstrap.NewAuthApp(ctx, cfg, log)
	if err != nil {
		log.Fatalf("failed to start %s service: %v", serviceName, err)
	}

	go app.Janitor.Run(ctx)

	mux := http.NewServeMux()
	mux.Handle("/", authhttp.NewHandler(app.Auth, app.Verifier, log, cfg.RequestTimeout, app.Stores))
	mux.Handle("/metrics", promhttp.Handler())

	server := srv.NewServer(srv.NewServerConfig(cfg.HTTPPort, cfg.RequestTimeout), commonhttp.BuildBaseHandler(log, mux))

	shutdownHooks := []srv.ShutdownHook{
		func(ctx context.Context) error {
			log.Infof("%s service: stopping background workers", serviceName)
			cancel()
			return nil
		},
		func(ctx context.Context) error {
			app.Close()
			return nil
		},
		shutdownTracing,
	}

	if err := srv.Run(ctx, server, log, serviceName, shutdownHooks); err != nil {
		log.Criticalf("%s service exited with error: %v", serviceName, err)
		os.Exit(1)
	}
}
