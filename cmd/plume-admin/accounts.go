package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/plumemail/plume/storage"
)

func handleCreateAccount() {
	fs := flag.NewFlagSet("create-account", flag.ExitOnError)

	configPath := fs.String("config", "config.toml", "Path to TOML configuration file")
	username := fs.String("username", "", "Username for the new account (required)")
	password := fs.String("password", "", "Password for the new account (required)")
	dataRoot := fs.String("dataroot", "", "Data root directory (overrides config)")

	fs.Usage = func() {
		fmt.Printf(`Create a new account

Usage:
  plume-admin create-account [options]

Options:
  --username string    Username for the new account (required)
  --password string    Password for the new account (required)
  --config string      Path to TOML configuration file (default "config.toml")
  --dataroot string    Data root directory (overrides config)
`)
	}
	fs.Parse(os.Args[2:])

	if *username == "" || *password == "" {
		fmt.Println("Error: --username and --password are required")
		fs.Usage()
		os.Exit(1)
	}

	store := openStore(fs, *configPath, *dataRoot)

	name, err := store.CreateAccount(*username, *password)
	if err != nil {
		fmt.Printf("Failed to create account: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Account '%s' created\n", name)
}

// openStore loads the admin config and opens the message store. Flag
// parsing has already happened on fs, so explicit overrides win.
func openStore(fs *flag.FlagSet, configPath, dataRoot string) *storage.Store {
	explicit := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "config" {
			explicit = true
		}
	})

	cfg, err := loadAdminConfig(configPath, explicit)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	if dataRoot != "" {
		cfg.Server.DataRoot = dataRoot
	}

	store, err := storage.New(cfg.Server.DataRoot, cfg.Server.Domain)
	if err != nil {
		fmt.Printf("Failed to open data root: %v\n", err)
		os.Exit(1)
	}
	return store
}
