package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/blobcab/blobcab/config"
	"github.com/blobcab/blobcab/logger"
)

// globalConfig is loaded once in main, before command dispatch. Command
// handlers apply their own flag overrides on top of it.
var globalConfig config.Config

func main() {
	args := os.Args[1:]

	// The --config flag precedes the command so every handler sees the same
	// loaded configuration.
	configPath := "blobcab.toml"
	explicitConfig := false
	for len(args) > 0 && strings.HasPrefix(args[0], "-") {
		switch {
		case args[0] == "--config" || args[0] == "-config":
			if len(args) < 2 {
				fmt.Printf("Error: --config requires a path\n\n")
				printUsage()
				os.Exit(1)
			}
			configPath = args[1]
			explicitConfig = true
			args = args[2:]
		case strings.HasPrefix(args[0], "--config="):
			configPath = strings.TrimPrefix(args[0], "--config=")
			explicitConfig = true
			args = args[1:]
		case args[0] == "--help" || args[0] == "-h":
			printUsage()
			return
		default:
			fmt.Printf("Unknown global flag: %s\n\n", args[0])
			printUsage()
			os.Exit(1)
		}
	}

	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}
	command := args[0]
	commandArgs := args[1:]

	if command == "help" || command == "--help" || command == "-h" {
		printUsage()
		return
	}

	loadGlobalConfig(configPath, explicitConfig)

	logFile, err := logger.Initialize(globalConfig.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "BLOBCAB: Warning initializing logger: %v\n", err)
	}
	if logFile != nil {
		defer logFile.Close()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-signalChan
		logger.Info("Received signal, shutting down", "signal", sig.String())
		cancel()
	}()

	switch command {
	case "put":
		handlePut(ctx, commandArgs)
	case "get":
		handleGet(ctx, commandArgs)
	case "stat":
		handleStat(ctx, commandArgs)
	case "ls":
		handleLs(ctx, commandArgs)
	case "mkdir":
		handleMkdir(ctx, commandArgs)
	case "rm":
		handleRm(ctx, commandArgs)
	case "mv":
		handleMv(ctx, commandArgs)
	case "rename":
		handleRename(ctx, commandArgs)
	case "rm-container":
		handleRmContainer(ctx, commandArgs)
	case "cache":
		handleCacheCommand(ctx, commandArgs)
	case "health":
		handleHealthCommand(ctx, commandArgs)
	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

// loadGlobalConfig loads the TOML configuration. A missing default config file
// is tolerated; a missing explicitly requested one is fatal.
func loadGlobalConfig(configPath string, explicit bool) {
	globalConfig = config.NewDefaultConfig()
	if err := config.LoadConfigFromFile(configPath, &globalConfig); err != nil {
		if os.IsNotExist(err) {
			if explicit {
				log.Fatalf("ERROR: specified configuration file '%s' not found: %v", configPath, err)
			}
			log.Printf("WARNING: default configuration file '%s' not found. Using defaults and command-line flags.", configPath)
		} else {
			log.Fatalf("FATAL: error parsing configuration file '%s': %v", configPath, err)
		}
	}
}

func printUsage() {
	fmt.Printf(`BLOBCAB File Manager

Usage:
  blobcab [--config PATH] <command> [options]

File Commands:
  put           Upload a local file
  get           Download a file to stdout or a local path
  stat          Show a stored file's attributes
  rm            Delete a file, or a whole folder when the path ends in /
  mv            Move a file or folder to a new path
  rename        Rename a file or folder in place

Folder Commands:
  ls            List the files and folders under a prefix
  mkdir         Create an empty folder

Container Commands:
  rm-container  Delete the container and everything in it

Maintenance Commands:
  cache         Inspect or purge the local content cache
  health        Check backend health, one-shot or watch mode

  help          Show this help message

Examples:
  blobcab put --file report.pdf --path docs/report.pdf
  blobcab ls --path docs/
  blobcab mv --path docs/report.pdf --to archive/report.pdf
  blobcab --config /etc/blobcab.toml health status
  blobcab rm --path docs/

Use 'blobcab <command> --help' for more information about a command.
`)
}
