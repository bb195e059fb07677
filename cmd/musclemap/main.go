package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"tailscale.com/tsnet"

	"github.com/irontracks/musclemap/internal/app"
	"github.com/irontracks/musclemap/internal/config"
	"github.com/irontracks/musclemap/internal/ingest/alpha"
	"github.com/irontracks/musclemap/internal/logging"
	"github.com/irontracks/musclemap/internal/metrics"
	"github.com/irontracks/musclemap/internal/server"
	"github.com/irontracks/musclemap/internal/storage"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	migrateOnly := flag.Bool("migrate-only", false, "run migrations and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, logCloser := logging.New(cfg.Log)
	defer logCloser.Close()
	log.Info("musclemap starting", "version", Version, "driver", cfg.Database.Driver)

	if *migrateOnly {
		if cfg.Database.Driver == config.DriverSQLite {
			log.Info("sqlite migrations run on open: nothing to do")
			return
		}
		if err := storage.RunMigrations(cfg.Database.DSN(), "migrations"); err != nil {
			log.Error("migration failed", "error", err)
			os.Exit(1)
		}
		log.Info("migrate-only: exiting")
		return
	}

	ctx := context.Background()
	db, collector, err := app.OpenStore(ctx, cfg.Database, "migrations")
	if err != nil {
		log.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	log.Info("database connected")

	var extra []prometheus.Collector
	if collector != nil {
		extra = append(extra, collector)
	}
	reg := metrics.SetupPrometheus(extra...)
	m := metrics.NewManager("musclemap", "main", reg)
	m.GaugeLifeSignal.Set(1)

	eng, limiterCloser, err := app.NewEngine(ctx, *cfg, db, m, log)
	if err != nil {
		log.Error("failed to create engine", "error", err)
		os.Exit(1)
	}
	defer limiterCloser.Close()

	alphaProvider := alpha.NewProvider(db, time.Local, log)

	srv := server.New(eng, db, alphaProvider, server.Options{
		AuthMode:  cfg.Auth.Mode,
		JWTSecret: cfg.Auth.JWTSecret,
		APIKey:    cfg.Auth.APIKey,
		Metrics:   m,
		Gatherer:  reg,
	}, log)

	// Start server: tsnet or plain HTTP
	var listener net.Listener
	if cfg.Tailscale.Enabled {
		tsServer := &tsnet.Server{
			Hostname: cfg.Tailscale.Hostname,
			Dir:      cfg.Tailscale.StateDir,
		}
		if err := tsServer.Start(); err != nil {
			log.Error("tsnet start failed", "error", err)
			os.Exit(1)
		}
		defer tsServer.Close()

		lc, err := tsServer.LocalClient()
		if err != nil {
			log.Error("tsnet local client failed", "error", err)
			os.Exit(1)
		}
		srv.SetTailscale(lc)

		listener, err = tsServer.Listen("tcp", ":80")
		if err != nil {
			log.Error("tsnet listen failed", "error", err)
			os.Exit(1)
		}
		log.Info("tsnet server starting", "hostname", cfg.Tailscale.Hostname, "auth", cfg.Auth.Mode)
	} else {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		listener, err = net.Listen("tcp", addr)
		if err != nil {
			log.Error("listen failed", "addr", addr, "error", err)
			os.Exit(1)
		}
		log.Info("server starting", "addr", addr, "auth", cfg.Auth.Mode)
	}

	httpSrv := &http.Server{
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := httpSrv.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info("shutting down", "signal", sig)
	m.GaugeLifeSignal.Set(0)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
	}
	log.Info("server stopped")
}
