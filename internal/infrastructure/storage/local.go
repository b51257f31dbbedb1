package storage

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
)

// LocalFetcher reads documents from the local filesystem. Locators are plain
// paths or file:// URLs.
type LocalFetcher struct{}

// NewLocalFetcher creates a new LocalFetcher
func NewLocalFetcher() *LocalFetcher {
	return &LocalFetcher{}
}

// Fetch reads the file at the given path and sniffs its content type from the
// extension.
func (f *LocalFetcher) Fetch(_ context.Context, locator string) ([]byte, string, error) {
	path := strings.TrimPrefix(locator, "file://")

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("read document %s: %w", path, err)
	}
	return data, contentTypeForPath(path), nil
}

func contentTypeForPath(path string) string {
	if contentType := mime.TypeByExtension(filepath.Ext(path)); contentType != "" {
		return contentType
	}
	return "application/octet-stream"
}
