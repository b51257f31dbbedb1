// Package storage resolves document locators into raw bytes, from the local
// filesystem or an S3-compatible object store.
package storage

import (
	"context"
	"fmt"
	"strings"

	appprocessing "github.com/ledgerscan/backend/internal/application/processing"
)

// Fetcher routes a locator to the fetcher for its scheme. Plain paths and
// file:// URLs resolve locally; s3:// URLs resolve against the object store.
type Fetcher struct {
	local  *LocalFetcher
	remote *S3Fetcher
}

// NewFetcher creates a routing fetcher. The remote fetcher may be nil when no
// object store is configured; s3:// locators then fail with a clear error.
func NewFetcher(local *LocalFetcher, remote *S3Fetcher) *Fetcher {
	if local == nil {
		local = NewLocalFetcher()
	}
	return &Fetcher{local: local, remote: remote}
}

// Fetch resolves the locator and returns the document bytes with their
// content type.
func (f *Fetcher) Fetch(ctx context.Context, locator string) ([]byte, string, error) {
	if strings.HasPrefix(locator, "s3://") {
		if f.remote == nil {
			return nil, "", fmt.Errorf("object storage is not configured for locator %q", locator)
		}
		return f.remote.Fetch(ctx, locator)
	}
	return f.local.Fetch(ctx, locator)
}

var _ appprocessing.DocumentFetcher = (*Fetcher)(nil)
var _ appprocessing.DocumentFetcher = (*LocalFetcher)(nil)
var _ appprocessing.DocumentFetcher = (*S3Fetcher)(nil)
