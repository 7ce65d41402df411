package main

// folders.go - Command handlers for folder operations

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/blobcab/blobcab/filemanager"
	"github.com/blobcab/blobcab/helpers"
	"github.com/blobcab/blobcab/logger"
)

func handleLs(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("ls", flag.ExitOnError)

	path := fs.String("path", "", "Folder prefix to list (default: container root)")
	jsonOutput := fs.Bool("json", false, "Output in JSON format")
	sf := registerStorageFlags(fs)

	fs.Usage = func() {
		fmt.Printf(`List the files and folders under a prefix

Usage:
  blobcab ls [options]

Options:
  --path string          Folder prefix to list (default: container root)
  --json                 Output in JSON format
  --container string     Container to operate on (overrides config)
  --endpoint string      S3 endpoint (overrides config)
  --access-key string    S3 access key (overrides config)
  --secret-key string    S3 secret key (overrides config)
  --insecure             Disable TLS for the S3 endpoint (overrides config)

Only direct children are listed: folders first, then files. Deeper levels
collapse into their containing folder.

Examples:
  blobcab ls
  blobcab ls --path docs/
  blobcab ls --path docs/2024/ --json
`)
	}

	if err := fs.Parse(args); err != nil {
		logger.Fatalf("Error parsing flags: %v", err)
	}

	cfg := resolveConfig(fs, sf)

	fm, cleanup := newFileManager(cfg)
	defer cleanup()

	folders, err := fm.GetChildFolders(ctx, *path)
	if err != nil {
		logger.Fatalf("Failed to list folders under %q: %v", *path, err)
	}
	files, err := fm.GetFolderFiles(ctx, *path)
	if err != nil {
		logger.Fatalf("Failed to list files under %q: %v", *path, err)
	}

	if *jsonOutput {
		if err := printListingJSON(fm.Container(), *path, folders, files); err != nil {
			logger.Fatalf("Failed to encode listing: %v", err)
		}
		return
	}

	if len(folders) == 0 && len(files) == 0 {
		fmt.Printf("No entries under %q\n", *path)
		return
	}

	fmt.Printf("%-8s %-10s %-20s %s\n", "KIND", "SIZE", "MODIFIED", "PATH")
	for _, entry := range folders {
		fmt.Printf("%-8s %-10s %-20s %s\n", entry.Kind, "-", "-", entry.Path)
	}
	for _, entry := range files {
		fmt.Printf("%-8s %-10s %-20s %s\n", entry.Kind, formatBytes(entry.Size), formatTime(entry.LastModified), entry.Path)
	}
	fmt.Printf("\n%d folders, %d files\n", len(folders), len(files))
}

func printListingJSON(container, prefix string, folders, files []*filemanager.BlobEntry) error {
	entries := make([]entryJSON, 0, len(folders)+len(files))
	for _, entry := range append(folders, files...) {
		entries = append(entries, entryJSON{
			Container:   container,
			Path:        entry.Path,
			Name:        entry.Name,
			Kind:        string(entry.Kind),
			ContentType: entry.ContentType,
			Size:        entry.Size,
			Modified:    entry.LastModified,
			ContentHash: entry.ContentHash,
		})
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(map[string]any{
		"prefix":  prefix,
		"entries": entries,
	})
}

func handleMkdir(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("mkdir", flag.ExitOnError)

	path := fs.String("path", "", "Path of the folder to create (required)")
	sf := registerStorageFlags(fs)

	fs.Usage = func() {
		fmt.Printf(`Create an empty folder

Usage:
  blobcab mkdir [options]

Options:
  --path string          Path of the folder to create (required)
  --container string     Container to operate on (overrides config)
  --endpoint string      S3 endpoint (overrides config)
  --access-key string    S3 access key (overrides config)
  --secret-key string    S3 secret key (overrides config)
  --insecure             Disable TLS for the S3 endpoint (overrides config)

Folders are emulated over flat keys: mkdir stores a zero-byte placeholder so
the folder is listable before any file lands in it. The container is created
when it does not exist yet.

Examples:
  blobcab mkdir --path docs/2024
  blobcab mkdir --path docs/2024/reports/
`)
	}

	if err := fs.Parse(args); err != nil {
		logger.Fatalf("Error parsing flags: %v", err)
	}

	if *path == "" {
		fmt.Printf("Error: --path is required\n\n")
		fs.Usage()
		os.Exit(1)
	}

	key := helpers.CleanKey(*path)
	name := helpers.BaseName(key)
	parent := helpers.ParentPrefix(key)
	if name == "" {
		fmt.Printf("Error: invalid folder path %q\n\n", *path)
		fs.Usage()
		os.Exit(1)
	}

	cfg := resolveConfig(fs, sf)

	fm, cleanup := newFileManager(cfg)
	defer cleanup()

	if _, err := fm.EnsureContainer(ctx); err != nil {
		logger.Fatalf("Failed to ensure container %s: %v", fm.Container(), err)
	}

	entry, err := fm.AddFolder(ctx, parent, name)
	if err != nil {
		logger.Fatalf("Failed to create folder: %v", err)
	}

	fmt.Printf("Created folder %s\n", entry.Path)
}
