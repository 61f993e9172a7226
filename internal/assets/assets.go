// Package assets stores uploaded media on disk. Files are written under the
// configured upload directory with a unique prefix so repeated uploads of the
// same filename never collide.
package assets

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"adforge/internal/config"
)

var videoExtensions = map[string]struct{}{
	".mp4": {},
	".mov": {},
	".avi": {},
}

// Store writes uploads below a root directory.
type Store struct {
	root string
}

// NewStore builds an asset store rooted at the configured upload directory.
func NewStore(cfg *config.Config) *Store {
	return &Store{root: cfg.Paths.UploadDir}
}

// Save writes the reader to disk and returns the stored path. The original
// filename is preserved after a unique prefix; path separators in the name
// are stripped.
func (s *Store) Save(name string, r io.Reader) (string, error) {
	name = sanitize(name)
	if name == "" {
		return "", fmt.Errorf("save asset: empty filename")
	}
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return "", fmt.Errorf("save asset: create upload dir: %w", err)
	}

	path := filepath.Join(s.root, uuid.NewString()[:8]+"_"+name)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("save asset: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("save asset: write %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("save asset: close %s: %w", name, err)
	}
	return path, nil
}

// MediaTypeFor infers whether an uploaded file is a video or an image from
// its extension.
func MediaTypeFor(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if _, ok := videoExtensions[ext]; ok {
		return "video"
	}
	return "image"
}

func sanitize(name string) string {
	name = filepath.Base(strings.TrimSpace(name))
	if name == "." || name == string(filepath.Separator) {
		return ""
	}
	return name
}
