package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/mark3labs/mcp-go/server"

	"github.com/irontracks/musclemap/internal/app"
	"github.com/irontracks/musclemap/internal/config"
	"github.com/irontracks/musclemap/internal/logging"
	"github.com/irontracks/musclemap/internal/mcp"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file (local mode)")
	serverURL := flag.String("server", "", "musclemap server URL; when set, tools call the REST API instead of the database")
	token := flag.String("token", os.Getenv("MUSCLEMAP_TOKEN"), "bearer token for a JWT server (default $MUSCLEMAP_TOKEN)")
	login := flag.String("user", "local", "login whose data the tools read (local mode)")
	flag.Parse()

	// stdout carries the protocol; logs go to stderr.
	if *serverURL != "" {
		log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
		ds := mcp.NewHTTPClient(strings.TrimRight(*serverURL, "/"), *token)
		log.Info("musclemap-mcp starting", "version", Version, "mode", "remote", "server", *serverURL)
		if err := serve(ds, 1, log); err != nil {
			log.Error("mcp server stopped", "error", err)
			os.Exit(1)
		}
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	log, logCloser := logging.NewConsole(cfg.Log, os.Stderr)
	defer logCloser.Close()

	ctx := context.Background()
	db, _, err := app.OpenStore(ctx, cfg.Database, "migrations")
	if err != nil {
		log.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	userID, err := db.GetOrCreateUser(ctx, *login, *login)
	if err != nil {
		log.Error("failed to resolve user", "user", *login, "error", err)
		os.Exit(1)
	}

	eng, limiterCloser, err := app.NewEngine(ctx, *cfg, db, nil, log)
	if err != nil {
		log.Error("failed to create engine", "error", err)
		os.Exit(1)
	}
	defer limiterCloser.Close()

	log.Info("musclemap-mcp starting", "version", Version, "mode", "local", "user", *login, "user_id", userID)
	if err := serve(eng, userID, log); err != nil {
		log.Error("mcp server stopped", "error", err)
		os.Exit(1)
	}
}

// serve runs the MCP server over stdio until stdin closes or a signal
// arrives. Every request is scoped to userID.
func serve(ds mcp.DataSource, userID int, log *slog.Logger) error {
	s := mcp.New(ds, Version, log)
	return server.ServeStdio(s, server.WithStdioContextFunc(func(ctx context.Context) context.Context {
		return mcp.WithUserID(ctx, userID)
	}))
}
