// Command secretsd runs the Secrets web app: anonymous secret sharing
// behind password and OAuth2 logins.
package main

import (
	"flag"
	"log/slog"
	"net/http"
	"os"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	gormstore "github.com/secretkeeper/secretkeeper/stores/gorm"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	addr := flag.String("addr", "", "listen address, overrides config")
	flag.Parse()

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		slog.Error("error loading config", "err", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Addr = *addr
	}
	if cfg.SigningSecret == "" {
		slog.Error("signing_secret is required (or set SECRETSD_SIGNING_SECRET)")
		os.Exit(1)
	}

	db, err := gorm.Open(sqlite.Open(cfg.DatabasePath), &gorm.Config{
		TranslateError: true,
	})
	if err != nil {
		slog.Error("error opening database", "path", cfg.DatabasePath, "err", err)
		os.Exit(1)
	}
	if err := gormstore.AutoMigrate(db); err != nil {
		slog.Error("error migrating database", "err", err)
		os.Exit(1)
	}

	server, err := NewServer(cfg,
		gormstore.NewAccountStore(db),
		gormstore.NewSessionStore(db),
		gormstore.NewSecretStore(db))
	if err != nil {
		slog.Error("error building server", "err", err)
		os.Exit(1)
	}

	slog.Info("Listening", "addr", cfg.Addr)
	if err := http.ListenAndServe(cfg.Addr, server.Handler()); err != nil {
		slog.Error("server error", "err", err)
		os.Exit(1)
	}
}
