package filemanager

import (
	"time"

	"github.com/blobcab/blobcab/helpers"
	"github.com/blobcab/blobcab/storage"
)

// Kind distinguishes stored files from synthetic folders.
type Kind string

const (
	KindFile   Kind = "file"
	KindFolder Kind = "folder"
)

// Metadata keys stored alongside object content.
const (
	// metaFilename holds the display name shown to users, independent of the
	// object key.
	metaFilename = "filename"
	// metaContentHash holds the hex BLAKE3 hash of the content, recorded at
	// upload when hashing is enabled.
	metaContentHash = "blake3"
)

// BlobEntry describes one stored object or one synthetic folder.
//
// Folders are virtual: a Folder entry stands for the set of keys sharing a
// prefix that ends in "/", so only Path and Name carry meaning for it.
type BlobEntry struct {
	Path         string
	Name         string
	ContentType  string
	Kind         Kind
	Size         int64
	LastModified time.Time
	ContentHash  string
}

// IsFolder reports whether the entry is a synthetic folder.
func (e *BlobEntry) IsFolder() bool {
	return e.Kind == KindFolder
}

// entryFromObject converts a store listing or stat result into a BlobEntry.
// The display name comes from the filename metadata when present and falls
// back to the last path segment.
func entryFromObject(info *storage.ObjectInfo) *BlobEntry {
	if info.IsPrefix || helpers.IsFolderKey(info.Key) {
		return folderEntry(info.Key)
	}

	name := info.Metadata[metaFilename]
	if name == "" {
		name = helpers.BaseName(info.Key)
	}

	return &BlobEntry{
		Path:         info.Key,
		Name:         name,
		ContentType:  info.ContentType,
		Kind:         KindFile,
		Size:         info.Size,
		LastModified: info.LastModified,
		ContentHash:  info.Metadata[metaContentHash],
	}
}

// folderEntry builds the synthetic entry for a folder prefix.
func folderEntry(prefix string) *BlobEntry {
	return &BlobEntry{
		Path: prefix,
		Name: helpers.BaseName(prefix),
		Kind: KindFolder,
	}
}
