package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/plumemail/plume/config"
	"github.com/plumemail/plume/logger"
	"github.com/plumemail/plume/server/httpapi"
	"github.com/plumemail/plume/server/mailserver"
	"github.com/plumemail/plume/storage"
)

func main() {
	// Initialize with application defaults
	cfg := config.NewDefaultConfig()

	// --- Define Command-Line Flags ---
	// These flags override values from the config file if explicitly set.
	configPath := flag.String("config", "config.toml", "Path to TOML configuration file")

	fAddr := flag.String("addr", cfg.Server.Addr, "Listen address (overrides config)")
	fDomain := flag.String("domain", cfg.Server.Domain, "Local mail domain (overrides config)")
	fDataRoot := flag.String("dataroot", cfg.Server.DataRoot, "Data root directory (overrides config)")
	fHTTPAPI := flag.Bool("httpapi", cfg.HTTPAPI.Start, "Start the HTTP observability server (overrides config)")
	fHTTPAPIAddr := flag.String("httpapiaddr", cfg.HTTPAPI.Addr, "HTTP observability server address (overrides config)")
	fLogOutput := flag.String("logoutput", cfg.Logging.Output, "Log output: 'stdout', 'stderr', 'syslog' or a file path (overrides config)")
	fLogLevel := flag.String("loglevel", cfg.Logging.Level, "Log level: debug, info, warn, error (overrides config)")

	flag.Parse()

	// --- Load Configuration from TOML File ---
	// Values from the TOML file override the application defaults.
	if found, err := config.LoadFile(*configPath, &cfg); err != nil {
		if !found {
			if isFlagSet("config") {
				log.Fatalf("Error: specified configuration file '%s' not found: %v", *configPath, err)
			}
			log.Printf("WARNING: default configuration file '%s' not found. Using application defaults and command-line flags.", *configPath)
		} else {
			log.Fatalf("Error: %v", err)
		}
	} else {
		log.Printf("Loaded configuration from %s", *configPath)
	}

	// --- Apply Command-Line Flag Overrides ---
	if isFlagSet("addr") {
		cfg.Server.Addr = *fAddr
	}
	if isFlagSet("domain") {
		cfg.Server.Domain = *fDomain
	}
	if isFlagSet("dataroot") {
		cfg.Server.DataRoot = *fDataRoot
	}
	if isFlagSet("httpapi") {
		cfg.HTTPAPI.Start = *fHTTPAPI
	}
	if isFlagSet("httpapiaddr") {
		cfg.HTTPAPI.Addr = *fHTTPAPIAddr
	}
	if isFlagSet("logoutput") {
		cfg.Logging.Output = *fLogOutput
	}
	if isFlagSet("loglevel") {
		cfg.Logging.Level = *fLogLevel
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// --- Initialize Logging ---
	logFile, err := logger.Initialize(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to initialize logging: %v", err)
	}
	if logFile != nil {
		defer logFile.Close()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle SIGINT and SIGTERM for shutdown
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-signalChan
		logger.Info("received signal, shutting down", "signal", sig.String())
		cancel()
	}()

	hostname, _ := os.Hostname()

	// The data root must exist before anything can be served. Failure
	// here is fatal to the process.
	store, err := storage.New(cfg.Server.DataRoot, cfg.Server.Domain)
	if err != nil {
		logger.Fatal("failed to open data root", "error", err)
	}

	authDelay, err := cfg.Server.GetAuthFailureDelay()
	if err != nil {
		logger.Fatal("invalid auth failure delay", "error", err)
	}

	srv, err := mailserver.New(ctx, "mail", hostname, cfg.Server.Addr, store, mailserver.ServerOptions{
		AuthFailureDelay: authDelay,
		MaxErrors:        cfg.Server.MaxErrors,
		MaxLineLength:    cfg.Server.MaxLineLength,
	})
	if err != nil {
		logger.Fatal("failed to create mail server", "error", err)
	}

	errChan := make(chan error, 1)

	if cfg.HTTPAPI.Start {
		go httpapi.Start(ctx, httpapi.ServerOptions{Addr: cfg.HTTPAPI.Addr}, errChan)
	}

	go srv.Start(errChan)

	select {
	case <-ctx.Done():
		srv.Close()
		logger.Info("shutdown complete")
	case err := <-errChan:
		srv.Close()
		logger.Fatal("server error", "error", err)
	}
}

// isFlagSet reports whether a flag was explicitly set on the command line.
func isFlagSet(name string) bool {
	set := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}
