package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/plumemail/plume/storage"
)

func handleList() {
	fs := flag.NewFlagSet("list", flag.ExitOnError)

	configPath := fs.String("config", "config.toml", "Path to TOML configuration file")
	username := fs.String("username", "", "Account to list (required)")
	dataRoot := fs.String("dataroot", "", "Data root directory (overrides config)")

	fs.Usage = func() {
		fmt.Printf(`List the messages in a user's mailbox, most recent first

Usage:
  plume-admin list [options]

Options:
  --username string    Account to list (required)
  --config string      Path to TOML configuration file (default "config.toml")
  --dataroot string    Data root directory (overrides config)
`)
	}
	fs.Parse(os.Args[2:])

	if *username == "" {
		fmt.Println("Error: --username is required")
		fs.Usage()
		os.Exit(1)
	}

	store := openStore(fs, *configPath, *dataRoot)

	summaries, err := store.ListMessages(*username)
	if err != nil {
		fmt.Printf("Failed to list mailbox: %v\n", err)
		os.Exit(1)
	}
	printSummaries(summaries)
}

func handleStats() {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)

	configPath := fs.String("config", "config.toml", "Path to TOML configuration file")
	username := fs.String("username", "", "Account to inspect (required)")
	dataRoot := fs.String("dataroot", "", "Data root directory (overrides config)")

	fs.Usage = func() {
		fmt.Printf(`Show message count and mailbox size for a user

Usage:
  plume-admin stats [options]

Options:
  --username string    Account to inspect (required)
  --config string      Path to TOML configuration file (default "config.toml")
  --dataroot string    Data root directory (overrides config)
`)
	}
	fs.Parse(os.Args[2:])

	if *username == "" {
		fmt.Println("Error: --username is required")
		fs.Usage()
		os.Exit(1)
	}

	store := openStore(fs, *configPath, *dataRoot)

	count, size, err := store.Stats(*username)
	if err != nil {
		fmt.Printf("Failed to read stats: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("%d message(s), %d byte(s)\n", count, size)
}

func handleLost() {
	fs := flag.NewFlagSet("lost", flag.ExitOnError)

	configPath := fs.String("config", "config.toml", "Path to TOML configuration file")
	dataRoot := fs.String("dataroot", "", "Data root directory (overrides config)")

	fs.Usage = func() {
		fmt.Printf(`List the messages in the lost bin

Usage:
  plume-admin lost [options]

Options:
  --config string      Path to TOML configuration file (default "config.toml")
  --dataroot string    Data root directory (overrides config)
`)
	}
	fs.Parse(os.Args[2:])

	store := openStore(fs, *configPath, *dataRoot)

	summaries, err := store.ListLost()
	if err != nil {
		fmt.Printf("Failed to list lost bin: %v\n", err)
		os.Exit(1)
	}
	printSummaries(summaries)
}

func printSummaries(summaries []storage.MessageSummary) {
	if len(summaries) == 0 {
		fmt.Println("No messages")
		return
	}
	for i, s := range summaries {
		fmt.Printf("#%-3d %-30s %-40s %s\n", i+1, s.Sender, s.Subject, s.Date.Format(time.RFC1123Z))
	}
}
