package main

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// AdminConfig holds the minimal configuration needed for admin operations
type AdminConfig struct {
	Server ServerConfig `toml:"server"`
}

// ServerConfig mirrors the server section of the main config file
type ServerConfig struct {
	Domain   string `toml:"domain"`
	DataRoot string `toml:"data_root"`
}

func newDefaultAdminConfig() AdminConfig {
	return AdminConfig{
		Server: ServerConfig{
			Domain:   "plume.example",
			DataRoot: "./data",
		},
	}
}

// loadAdminConfig layers the TOML file at path over the defaults. A
// missing file at the default path is not an error.
func loadAdminConfig(path string, explicit bool) (AdminConfig, error) {
	cfg := newDefaultAdminConfig()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		if os.IsNotExist(err) && !explicit {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to load config file '%s': %w", path, err)
	}
	return cfg, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	switch command {
	case "create-account":
		handleCreateAccount()
	case "list":
		handleList()
	case "stats":
		handleStats()
	case "lost":
		handleLost()
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Printf(`PLUME Admin Tool

Usage:
  plume-admin <command> [options]

Commands:
  create-account    Create a new account
  list              List the messages in a user's mailbox
  stats             Show message count and mailbox size for a user
  lost              List the messages in the lost bin
  help              Show this help message

Examples:
  plume-admin create-account --username alice --password 'Str0ngPass'
  plume-admin list --username alice
  plume-admin stats --username alice
  plume-admin lost --config /etc/plume/config.toml

Use 'plume-admin <command> --help' for more information about a command.
`)
}
