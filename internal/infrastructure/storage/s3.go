package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	infraconfig "github.com/ledgerscan/backend/internal/infrastructure/config"
)

// S3Fetcher reads documents from an S3-compatible object store. It works
// against AWS S3 as well as MinIO-style deployments behind a custom endpoint.
type S3Fetcher struct {
	client        *s3.Client
	defaultBucket string
	logger        *zap.Logger
}

// S3FetcherOption is a functional option for configuring S3Fetcher
type S3FetcherOption func(*S3Fetcher)

// WithS3Client replaces the underlying S3 client
func WithS3Client(client *s3.Client) S3FetcherOption {
	return func(f *S3Fetcher) {
		f.client = client
	}
}

// WithS3Logger sets a custom logger for S3Fetcher
func WithS3Logger(logger *zap.Logger) S3FetcherOption {
	return func(f *S3Fetcher) {
		f.logger = logger
	}
}

// NewS3Fetcher creates a new S3Fetcher from configuration
func NewS3Fetcher(cfg infraconfig.StorageConfig, opts ...S3FetcherOption) (*S3Fetcher, error) {
	fetcher := &S3Fetcher{
		defaultBucket: cfg.Bucket,
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(fetcher)
	}

	if fetcher.client == nil {
		if cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" {
			return nil, errors.New("storage credentials are required")
		}

		awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
			awsconfig.WithRegion(cfg.Region),
			awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				cfg.AccessKeyID,
				cfg.SecretAccessKey,
				"",
			)),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create AWS config: %w", err)
		}

		fetcher.client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			o.UsePathStyle = cfg.UsePathStyle
			if cfg.Endpoint != "" {
				o.BaseEndpoint = aws.String(cfg.Endpoint)
			}
		})
	}

	return fetcher, nil
}

// Fetch downloads the object named by an s3://bucket/key locator. A locator
// without a bucket falls back to the configured default bucket.
func (f *S3Fetcher) Fetch(ctx context.Context, locator string) ([]byte, string, error) {
	bucket, key, err := f.parseLocator(locator)
	if err != nil {
		return nil, "", err
	}

	output, err := f.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, "", fmt.Errorf("fetch s3://%s/%s: %w", bucket, key, err)
	}
	defer output.Body.Close()

	data, err := io.ReadAll(output.Body)
	if err != nil {
		return nil, "", fmt.Errorf("read s3://%s/%s: %w", bucket, key, err)
	}

	contentType := aws.ToString(output.ContentType)
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = contentTypeForPath(key)
	}

	f.logger.Debug("fetched document from object store",
		zap.String("bucket", bucket),
		zap.String("key", key),
		zap.Int("bytes", len(data)))
	return data, contentType, nil
}

func (f *S3Fetcher) parseLocator(locator string) (string, string, error) {
	trimmed := strings.TrimPrefix(locator, "s3://")
	bucket, key, found := strings.Cut(trimmed, "/")
	if !found || key == "" {
		return "", "", fmt.Errorf("malformed object locator %q", locator)
	}
	if bucket == "" {
		bucket = f.defaultBucket
	}
	if bucket == "" {
		return "", "", fmt.Errorf("object locator %q names no bucket and none is configured", locator)
	}
	return bucket, key, nil
}
