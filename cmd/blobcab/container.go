package main

// container.go - Command handler for container removal

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"github.com/blobcab/blobcab/logger"
)

func handleRmContainer(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("rm-container", flag.ExitOnError)

	confirm := fs.Bool("confirm", false, "Confirm container removal without interactive prompt")
	sf := registerStorageFlags(fs)

	fs.Usage = func() {
		fmt.Printf(`Delete the container and everything in it

Usage:
  blobcab rm-container [options]

Options:
  --confirm              Confirm container removal without interactive prompt
  --container string     Container to operate on (overrides config)
  --endpoint string      S3 endpoint (overrides config)
  --access-key string    S3 access key (overrides config)
  --secret-key string    S3 secret key (overrides config)
  --insecure             Disable TLS for the S3 endpoint (overrides config)

This command removes the container together with every file and folder
stored in it. This action cannot be undone. Removing a container that does
not exist is a no-op.

Examples:
  blobcab rm-container
  blobcab rm-container --container tenant-a --confirm
`)
	}

	if err := fs.Parse(args); err != nil {
		logger.Fatalf("Error parsing flags: %v", err)
	}

	cfg := resolveConfig(fs, sf)

	if !*confirm {
		fmt.Printf("This will remove container %q and ALL of its content\n", cfg.FileManager.Container)
		fmt.Printf("This action cannot be undone. Are you sure? (y/N): ")

		var response string
		if _, err := fmt.Scanln(&response); err != nil {
			logger.Fatalf("Failed to read confirmation: %v", err)
		}
		if strings.ToLower(response) != "y" && strings.ToLower(response) != "yes" {
			fmt.Println("Container removal cancelled.")
			return
		}
	}

	fm, cleanup := newFileManager(cfg)
	defer cleanup()

	if err := fm.DeleteContainer(ctx); err != nil {
		logger.Fatalf("Failed to delete container %s: %v", fm.Container(), err)
	}

	fmt.Printf("Container %s removed.\n", fm.Container())
}
