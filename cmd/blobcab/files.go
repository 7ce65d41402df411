package main

// files.go - Command handlers for single-file operations

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/blobcab/blobcab/filemanager"
	"github.com/blobcab/blobcab/helpers"
	"github.com/blobcab/blobcab/logger"
)

func handlePut(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("put", flag.ExitOnError)

	path := fs.String("path", "", "Destination path within the container (required)")
	file := fs.String("file", "", "Local file to upload, or '-' to read from stdin (required)")
	name := fs.String("name", "", "Display name stored in metadata (default: last path segment)")
	contentType := fs.String("content-type", "", "Content type (default: from config)")
	sf := registerStorageFlags(fs)

	fs.Usage = func() {
		fmt.Printf(`Upload a local file

Usage:
  blobcab put [options]

Options:
  --path string          Destination path within the container (required)
  --file string          Local file to upload, or '-' to read from stdin (required)
  --name string          Display name stored in metadata (default: last path segment)
  --content-type string  Content type (default: from config)
  --container string     Container to operate on (overrides config)
  --endpoint string      S3 endpoint (overrides config)
  --access-key string    S3 access key (overrides config)
  --secret-key string    S3 secret key (overrides config)
  --insecure             Disable TLS for the S3 endpoint (overrides config)

The container is created when it does not exist yet. The display name and,
unless disabled, a BLAKE3 content hash are stored as object metadata.

Examples:
  blobcab put --file report.pdf --path docs/report.pdf
  blobcab put --file - --path notes/today.txt --content-type text/plain < notes.txt
  blobcab put --file logo.png --path assets/logo.png --name "Company Logo.png"
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
	if *file == "" {
		fmt.Printf("Error: --file is required\n\n")
		fs.Usage()
		os.Exit(1)
	}

	cfg := resolveConfig(fs, sf)

	data, err := readInput(*file)
	if err != nil {
		logger.Fatalf("Failed to read input: %v", err)
	}

	fm, cleanup := newFileManager(cfg)
	defer cleanup()

	if _, err := fm.EnsureContainer(ctx); err != nil {
		logger.Fatalf("Failed to ensure container %s: %v", fm.Container(), err)
	}

	entry, err := fm.AddFile(ctx, *path, *name, *contentType, data)
	if err != nil {
		logger.Fatalf("Failed to upload file: %v", err)
	}

	fmt.Printf("Successfully uploaded %s (%s)\n", entry.Path, formatBytes(entry.Size))
}

// readInput reads the upload content from a local file or stdin.
func readInput(file string) ([]byte, error) {
	if file == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(file)
}

func handleGet(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("get", flag.ExitOnError)

	path := fs.String("path", "", "Path of the file to download (required)")
	output := fs.String("output", "", "Local file to write to (default: stdout)")
	sf := registerStorageFlags(fs)

	fs.Usage = func() {
		fmt.Printf(`Download a file to stdout or a local path

Usage:
  blobcab get [options]

Options:
  --path string          Path of the file to download (required)
  --output string        Local file to write to (default: stdout)
  --container string     Container to operate on (overrides config)
  --endpoint string      S3 endpoint (overrides config)
  --access-key string    S3 access key (overrides config)
  --secret-key string    S3 secret key (overrides config)
  --insecure             Disable TLS for the S3 endpoint (overrides config)

When the local content cache is enabled in the configuration, content is
served from it on a hash match instead of reaching the backend.

Examples:
  blobcab get --path docs/report.pdf --output report.pdf
  blobcab get --path notes/today.txt
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

	cfg := resolveConfig(fs, sf)

	fm, cleanup := newFileManager(cfg)
	defer cleanup()

	rc, entry, err := fm.OpenFile(ctx, *path)
	if err != nil {
		logger.Fatalf("Failed to download file: %v", err)
	}
	if rc == nil {
		fmt.Fprintf(os.Stderr, "File not found: %s\n", *path)
		os.Exit(1)
	}
	defer rc.Close()

	if *output == "" {
		if _, err := io.Copy(os.Stdout, rc); err != nil {
			logger.Fatalf("Failed to write to stdout: %v", err)
		}
		return
	}

	out, err := os.Create(*output)
	if err != nil {
		logger.Fatalf("Failed to create output file %s: %v", *output, err)
	}
	written, err := io.Copy(out, rc)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		logger.Fatalf("Failed to write output file %s: %v", *output, err)
	}

	fmt.Printf("Downloaded %s to %s (%s)\n", entry.Path, *output, formatBytes(written))
}

func handleStat(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("stat", flag.ExitOnError)

	path := fs.String("path", "", "Path of the file to inspect (required)")
	jsonOutput := fs.Bool("json", false, "Output in JSON format")
	sf := registerStorageFlags(fs)

	fs.Usage = func() {
		fmt.Printf(`Show a stored file's attributes

Usage:
  blobcab stat [options]

Options:
  --path string          Path of the file to inspect (required)
  --json                 Output in JSON format
  --container string     Container to operate on (overrides config)
  --endpoint string      S3 endpoint (overrides config)
  --access-key string    S3 access key (overrides config)
  --secret-key string    S3 secret key (overrides config)
  --insecure             Disable TLS for the S3 endpoint (overrides config)

Examples:
  blobcab stat --path docs/report.pdf
  blobcab stat --path docs/report.pdf --json
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

	cfg := resolveConfig(fs, sf)

	fm, cleanup := newFileManager(cfg)
	defer cleanup()

	entry, err := fm.GetFile(ctx, *path)
	if err != nil {
		logger.Fatalf("Failed to stat file: %v", err)
	}
	if entry == nil {
		fmt.Fprintf(os.Stderr, "File not found: %s\n", *path)
		os.Exit(1)
	}

	if *jsonOutput {
		if err := printEntryJSON(entry, fm.Container()); err != nil {
			logger.Fatalf("Failed to encode entry: %v", err)
		}
		return
	}

	fmt.Printf("Path:          %s\n", entry.Path)
	fmt.Printf("Name:          %s\n", entry.Name)
	fmt.Printf("Kind:          %s\n", entry.Kind)
	fmt.Printf("Content type:  %s\n", entry.ContentType)
	fmt.Printf("Size:          %d bytes (%s)\n", entry.Size, formatBytes(entry.Size))
	fmt.Printf("Modified:      %s\n", formatTime(entry.LastModified))
	if entry.ContentHash != "" {
		fmt.Printf("Content hash:  %s\n", entry.ContentHash)
	}
}

// entryJSON is the JSON rendering of a file manager entry.
type entryJSON struct {
	Container   string    `json:"container"`
	Path        string    `json:"path"`
	Name        string    `json:"name"`
	Kind        string    `json:"kind"`
	ContentType string    `json:"content_type,omitempty"`
	Size        int64     `json:"size"`
	Modified    time.Time `json:"modified,omitempty"`
	ContentHash string    `json:"content_hash,omitempty"`
}

func printEntryJSON(entry *filemanager.BlobEntry, container string) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(entryJSON{
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

func handleRm(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("rm", flag.ExitOnError)

	path := fs.String("path", "", "Path to delete; a trailing / deletes the whole folder (required)")
	sf := registerStorageFlags(fs)

	fs.Usage = func() {
		fmt.Printf(`Delete a file, or a whole folder when the path ends in /

Usage:
  blobcab rm [options]

Options:
  --path string          Path to delete; a trailing / deletes the whole folder (required)
  --container string     Container to operate on (overrides config)
  --endpoint string      S3 endpoint (overrides config)
  --access-key string    S3 access key (overrides config)
  --secret-key string    S3 secret key (overrides config)
  --insecure             Disable TLS for the S3 endpoint (overrides config)

Deleting a path with nothing stored under it succeeds silently. A folder
delete removes every file under the prefix, including the folder placeholder.

Examples:
  blobcab rm --path docs/report.pdf
  blobcab rm --path docs/2023/
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

	cfg := resolveConfig(fs, sf)

	fm, cleanup := newFileManager(cfg)
	defer cleanup()

	if err := fm.DeleteFile(ctx, *path); err != nil {
		logger.Fatalf("Failed to delete %s: %v", *path, err)
	}

	fmt.Printf("Deleted %s\n", *path)
}

func handleMv(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("mv", flag.ExitOnError)

	path := fs.String("path", "", "Current path; a trailing / moves the whole folder (required)")
	to := fs.String("to", "", "Destination path (required)")
	sf := registerStorageFlags(fs)

	fs.Usage = func() {
		fmt.Printf(`Move a file or folder to a new path

Usage:
  blobcab mv [options]

Options:
  --path string          Current path; a trailing / moves the whole folder (required)
  --to string            Destination path (required)
  --container string     Container to operate on (overrides config)
  --endpoint string      S3 endpoint (overrides config)
  --access-key string    S3 access key (overrides config)
  --secret-key string    S3 secret key (overrides config)
  --insecure             Disable TLS for the S3 endpoint (overrides config)

A move is a copy to the new path followed by a delete of the old one; the
backend has no atomic rename. Folder moves relocate every file under the
prefix and are not atomic across files.

Examples:
  blobcab mv --path docs/report.pdf --to archive/report.pdf
  blobcab mv --path docs/2023/ --to archive/2023/
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
	if *to == "" {
		fmt.Printf("Error: --to is required\n\n")
		fs.Usage()
		os.Exit(1)
	}

	cfg := resolveConfig(fs, sf)

	fm, cleanup := newFileManager(cfg)
	defer cleanup()

	var err error
	if helpers.IsFolderKey(helpers.CleanKey(*path)) {
		err = fm.MoveFolder(ctx, *path, *to)
	} else {
		err = fm.MoveFile(ctx, *path, *to)
	}
	if err != nil {
		logger.Fatalf("Failed to move %s: %v", *path, err)
	}

	fmt.Printf("Moved %s to %s\n", *path, *to)
}

func handleRename(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("rename", flag.ExitOnError)

	path := fs.String("path", "", "Current path; a trailing / renames the whole folder (required)")
	name := fs.String("name", "", "New name, without any / (required)")
	sf := registerStorageFlags(fs)

	fs.Usage = func() {
		fmt.Printf(`Rename a file or folder in place

Usage:
  blobcab rename [options]

Options:
  --path string          Current path; a trailing / renames the whole folder (required)
  --name string          New name, without any / (required)
  --container string     Container to operate on (overrides config)
  --endpoint string      S3 endpoint (overrides config)
  --access-key string    S3 access key (overrides config)
  --secret-key string    S3 secret key (overrides config)
  --insecure             Disable TLS for the S3 endpoint (overrides config)

Renaming changes the last path segment and updates the display name stored
in metadata. The parent folder stays the same; use mv to relocate.

Examples:
  blobcab rename --path docs/report.pdf --name final-report.pdf
  blobcab rename --path docs/2023/ --name archive-2023
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
	if *name == "" {
		fmt.Printf("Error: --name is required\n\n")
		fs.Usage()
		os.Exit(1)
	}

	cfg := resolveConfig(fs, sf)

	fm, cleanup := newFileManager(cfg)
	defer cleanup()

	var err error
	if helpers.IsFolderKey(helpers.CleanKey(*path)) {
		err = fm.RenameFolder(ctx, *path, *name)
	} else {
		err = fm.RenameFile(ctx, *path, *name)
	}
	if err != nil {
		logger.Fatalf("Failed to rename %s: %v", *path, err)
	}

	fmt.Printf("Renamed %s to %s\n", *path, *name)
}
