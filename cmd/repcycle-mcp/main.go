package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/server"
	"github.com/meltforce/repcycle/internal/config"
	"github.com/meltforce/repcycle/internal/mcp"
	"github.com/meltforce/repcycle/internal/models"
	"github.com/meltforce/repcycle/internal/storage"
	"github.com/meltforce/repcycle/internal/training"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	remoteURL := flag.String("url", "", "base URL of a RepCycle server (remote mode)")
	configPath := flag.String("config", "", "path to config file (local mode)")
	flag.Parse()

	// stdout carries the MCP protocol; logs go to stderr.
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if (*remoteURL == "") == (*configPath == "") {
		fmt.Fprintf(os.Stderr, "Usage: repcycle-mcp -url http://repcycle.tailnet.ts.net | -config config.yaml\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	var ds mcp.DataSource
	if *remoteURL != "" {
		ds = mcp.NewHTTPClient(*remoteURL)
		log.Info("remote mode", "url", *remoteURL)
	} else {
		cfg, err := config.Load(*configPath)
		if err != nil {
			log.Error("failed to load config", "error", err)
			os.Exit(1)
		}
		backend, err := storage.Open(context.Background(), storage.Options{
			Driver:      cfg.Storage.Driver,
			SQLitePath:  cfg.Storage.SQLitePath,
			PostgresDSN: cfg.Database.DSN(),
			Redis: storage.RedisOptions{
				Addr:     cfg.Redis.Addr,
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.DB,
			},
		}, log)
		if err != nil {
			log.Error("failed to open storage", "error", err)
			os.Exit(1)
		}
		defer backend.Close()

		ds = mcp.NewLocalSource(training.NewProfiles(backend, training.Settings{
			Catalog: models.DefaultCatalog(),
			Policy:  cfg.Training.Policy(),
		}, log))
		log.Info("local mode", "driver", cfg.Storage.Driver)
	}

	if err := server.ServeStdio(mcp.New(ds, Version, log)); err != nil {
		log.Error("stdio server error", "error", err)
		os.Exit(1)
	}
}
