// Package media stores generated object illustrations on the local
// filesystem and hands back stable references for the object records.
package media

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Dir is a filesystem-backed image sink rooted at a single directory.
type Dir struct {
	root string
}

// NewDir prepares an image directory, creating it if missing.
func NewDir(root string) (*Dir, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("media root is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create media root: %w", err)
	}
	return &Dir{root: root}, nil
}

// Save writes the image bytes under a filename derived from the object
// name and returns the relative reference stored on the object record.
func (d *Dir) Save(objectName string, data []byte) (string, error) {
	name := fileName(objectName)
	if name == "" {
		return "", fmt.Errorf("object name yields an empty filename")
	}
	if len(data) == 0 {
		return "", fmt.Errorf("image data is empty")
	}
	ref := name + ".png"
	if err := os.WriteFile(filepath.Join(d.root, ref), data, 0o644); err != nil {
		return "", fmt.Errorf("write image: %w", err)
	}
	return ref, nil
}

// Open returns the image bytes for a previously saved reference. The
// reference is confined to the media root.
func (d *Dir) Open(ref string) ([]byte, error) {
	cleaned := filepath.Clean(ref)
	if cleaned == "." || strings.HasPrefix(cleaned, "..") || filepath.IsAbs(cleaned) {
		return nil, fmt.Errorf("invalid image reference %q", ref)
	}
	data, err := os.ReadFile(filepath.Join(d.root, cleaned))
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	return data, nil
}

// fileName lowercases the object name and collapses anything outside
// [a-z0-9] into single underscores.
func fileName(objectName string) string {
	var b strings.Builder
	lastUnderscore := true
	for _, r := range strings.ToLower(strings.TrimSpace(objectName)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}
