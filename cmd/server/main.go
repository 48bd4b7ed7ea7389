package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/ienet/earthnet/pkg/database"
	"github.com/ienet/earthnet/pkg/logger"
	"github.com/ienet/earthnet/pkg/server"
)

var (
	// Version is set at build time via ldflags
	Version = "dev"
)

func main() {
	configPath := flag.String("config", "~/.earthnet/config.toml", "Path to config file")
	tcpAddr := flag.String("addr", "", "TCP listen address (overrides config)")
	dbPath := flag.String("db", "", "Path to SQLite database (overrides config)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	version := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *version {
		fmt.Printf("EarthNet Server %s\n", Version)
		os.Exit(0)
	}

	// Load configuration (creates default if not found)
	fileConfig, err := server.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Command-line flags override config file
	if *tcpAddr != "" {
		fileConfig.Server.TCPAddr = *tcpAddr
	}
	if *dbPath != "" {
		fileConfig.Server.DatabasePath = *dbPath
	}
	if *debug {
		fileConfig.Log.Level = "debug"
	}

	log := logger.New(logger.Config{
		Level:      fileConfig.Log.Level,
		File:       fileConfig.Log.File,
		MaxSizeMB:  fileConfig.Log.MaxSizeMB,
		MaxBackups: fileConfig.Log.MaxBackups,
		MaxAgeDays: fileConfig.Log.MaxAgeDays,
	})

	config, err := fileConfig.ToServerConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	finalDBPath, err := fileConfig.GetDatabasePath()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to resolve database path")
	}
	if err := os.MkdirAll(filepath.Dir(finalDBPath), 0755); err != nil {
		log.Fatal().Err(err).Msg("failed to create database directory")
	}

	db, err := database.Open(finalDBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer db.Close()

	srv := server.NewServer(config, db, server.NewMetrics(), log)
	if err := srv.Start(); err != nil {
		log.Fatal().Err(err).Msg("failed to start server")
	}
	log.Info().Str("version", Version).Msg("server started")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	log.Info().Msg("shutting down")
	if err := srv.Stop(); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}
}
