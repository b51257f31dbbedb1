package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalFetcher(t *testing.T) {
	ctx := context.Background()
	fetcher := NewLocalFetcher()

	t.Run("reads a plain path and sniffs the content type", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "invoice.pdf")
		require.NoError(t, os.WriteFile(path, []byte("%PDF-1.7"), 0o600))

		data, contentType, err := fetcher.Fetch(ctx, path)
		require.NoError(t, err)
		assert.Equal(t, []byte("%PDF-1.7"), data)
		assert.Equal(t, "application/pdf", contentType)
	})

	t.Run("accepts file urls", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "receipt.png")
		require.NoError(t, os.WriteFile(path, []byte{0x89, 'P', 'N', 'G'}, 0o600))

		_, contentType, err := fetcher.Fetch(ctx, "file://"+path)
		require.NoError(t, err)
		assert.Equal(t, "image/png", contentType)
	})

	t.Run("unknown extensions fall back to octet-stream", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "scan.raw42")
		require.NoError(t, os.WriteFile(path, []byte("data"), 0o600))

		_, contentType, err := fetcher.Fetch(ctx, path)
		require.NoError(t, err)
		assert.Equal(t, "application/octet-stream", contentType)
	})

	t.Run("missing files return an error", func(t *testing.T) {
		_, _, err := fetcher.Fetch(ctx, filepath.Join(t.TempDir(), "missing.pdf"))
		assert.Error(t, err)
	})
}

func TestFetcherRouting(t *testing.T) {
	ctx := context.Background()

	t.Run("routes plain paths to the local fetcher", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "doc.pdf")
		require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))

		fetcher := NewFetcher(nil, nil)
		_, _, err := fetcher.Fetch(ctx, path)
		assert.NoError(t, err)
	})

	t.Run("rejects s3 locators when no object store is configured", func(t *testing.T) {
		fetcher := NewFetcher(nil, nil)
		_, _, err := fetcher.Fetch(ctx, "s3://docs/2026/scan.pdf")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not configured")
	})
}

func TestS3LocatorParsing(t *testing.T) {
	fetcher := &S3Fetcher{defaultBucket: "docs"}

	t.Run("splits bucket and key", func(t *testing.T) {
		bucket, key, err := fetcher.parseLocator("s3://scans/2026/march/inv.pdf")
		require.NoError(t, err)
		assert.Equal(t, "scans", bucket)
		assert.Equal(t, "2026/march/inv.pdf", key)
	})

	t.Run("empty bucket falls back to the configured default", func(t *testing.T) {
		bucket, key, err := fetcher.parseLocator("s3:///inv.pdf")
		require.NoError(t, err)
		assert.Equal(t, "docs", bucket)
		assert.Equal(t, "inv.pdf", key)
	})

	t.Run("rejects locators without a key", func(t *testing.T) {
		_, _, err := fetcher.parseLocator("s3://scans")
		assert.Error(t, err)
	})
}
