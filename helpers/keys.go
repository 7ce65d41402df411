package helpers

import "strings"

// KeyDelimiter separates path segments in blob keys. Folder semantics are
// emulated by convention: a key ending in the delimiter is a folder prefix.
const KeyDelimiter = "/"

// CleanKey normalizes a blob key: trims surrounding whitespace, strips any
// leading delimiter and collapses repeated delimiters. A single trailing
// delimiter is preserved because it carries folder meaning.
func CleanKey(key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return ""
	}
	isFolder := strings.HasSuffix(key, KeyDelimiter)

	parts := strings.Split(key, KeyDelimiter)
	segments := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			segments = append(segments, p)
		}
	}
	cleaned := strings.Join(segments, KeyDelimiter)
	if cleaned == "" {
		return ""
	}
	if isFolder {
		cleaned += KeyDelimiter
	}
	return cleaned
}

// FolderKey returns key with exactly one trailing delimiter. The empty key
// (container root) stays empty.
func FolderKey(key string) string {
	key = CleanKey(key)
	if key == "" {
		return ""
	}
	if strings.HasSuffix(key, KeyDelimiter) {
		return key
	}
	return key + KeyDelimiter
}

// IsFolderKey reports whether key addresses a folder prefix rather than a
// single blob.
func IsFolderKey(key string) bool {
	return strings.HasSuffix(key, KeyDelimiter)
}

// BaseName returns the last path segment of a key. For folder keys the
// trailing delimiter is ignored, so BaseName("docs/reports/") is "reports".
func BaseName(key string) string {
	key = strings.TrimSuffix(key, KeyDelimiter)
	if key == "" {
		return ""
	}
	if idx := strings.LastIndex(key, KeyDelimiter); idx >= 0 {
		return key[idx+1:]
	}
	return key
}

// ParentPrefix returns the folder prefix containing key, with trailing
// delimiter, or "" when key sits at the container root.
func ParentPrefix(key string) string {
	key = strings.TrimSuffix(key, KeyDelimiter)
	idx := strings.LastIndex(key, KeyDelimiter)
	if idx < 0 {
		return ""
	}
	return key[:idx+1]
}

// JoinKey joins key segments with the delimiter, dropping empty segments.
// The result is cleaned but never gains a trailing delimiter.
func JoinKey(segments ...string) string {
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		s = strings.Trim(strings.TrimSpace(s), KeyDelimiter)
		if s != "" {
			parts = append(parts, s)
		}
	}
	return CleanKey(strings.Join(parts, KeyDelimiter))
}

// ChildPrefix returns the next-level folder prefix of key relative to prefix:
// ChildPrefix("docs/", "docs/2024/q1/report.pdf") is "docs/2024/". It returns
// "" when key is a direct child of prefix (no deeper folder level) or does not
// live under prefix at all.
func ChildPrefix(prefix, key string) string {
	if !strings.HasPrefix(key, prefix) {
		return ""
	}
	rest := key[len(prefix):]
	idx := strings.Index(rest, KeyDelimiter)
	if idx < 0 {
		return ""
	}
	return prefix + rest[:idx+1]
}

// IsDirectChild reports whether key names an object immediately under prefix,
// with no intervening folder level. Folder placeholder keys (trailing
// delimiter) are not direct children of themselves.
func IsDirectChild(prefix, key string) bool {
	if key == prefix || !strings.HasPrefix(key, prefix) {
		return false
	}
	rest := strings.TrimSuffix(key[len(prefix):], KeyDelimiter)
	return rest != "" && !strings.Contains(rest, KeyDelimiter)
}
