package minio

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const uriScheme = "s3://"

type Storage struct {
	client         *miniogo.Client
	sourceBucket   string
	artifactBucket string
}

type StorageConfig struct {
	Endpoint       string
	AccessKey      string
	SecretKey      string
	UseSSL         bool
	SourceBucket   string
	ArtifactBucket string
}

func NewStorage(cfg StorageConfig) (*Storage, error) {
	client, err := miniogo.New(cfg.Endpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	return &Storage{
		client:         client,
		sourceBucket:   cfg.SourceBucket,
		artifactBucket: cfg.ArtifactBucket,
	}, nil
}

func (s *Storage) EnsureBuckets(ctx context.Context) error {
	for _, bucket := range []string{s.sourceBucket, s.artifactBucket} {
		exists, err := s.client.BucketExists(ctx, bucket)
		if err != nil {
			return fmt.Errorf("check bucket %s: %w", bucket, err)
		}
		if !exists {
			if err := s.client.MakeBucket(ctx, bucket, miniogo.MakeBucketOptions{}); err != nil {
				return fmt.Errorf("create bucket %s: %w", bucket, err)
			}
		}
	}
	return nil
}

// DownloadObject fetches uri into destPath. uri is either s3://bucket/key
// or a key in the source bucket.
func (s *Storage) DownloadObject(ctx context.Context, uri string, destPath string) error {
	bucket, key, err := ParseURI(uri, s.sourceBucket)
	if err != nil {
		return err
	}
	if err := s.client.FGetObject(ctx, bucket, key, destPath, miniogo.GetObjectOptions{}); err != nil {
		return fmt.Errorf("download %s/%s: %w", bucket, key, err)
	}
	return nil
}

// UploadObject stores reader under objectKey in the artifact bucket and
// returns its s3:// URI.
func (s *Storage) UploadObject(ctx context.Context, objectKey string, reader io.Reader, size int64, contentType string) (string, error) {
	_, err := s.client.PutObject(ctx, s.artifactBucket, objectKey, reader, size, miniogo.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", objectKey, err)
	}
	return FormatURI(s.artifactBucket, objectKey), nil
}

// ParseURI splits uri into bucket and key. It accepts s3://bucket/key,
// path-style http(s) URLs such as presigned ones, and bare keys that live in
// defaultBucket.
func ParseURI(uri, defaultBucket string) (bucket, key string, err error) {
	if strings.HasPrefix(uri, "http://") || strings.HasPrefix(uri, "https://") {
		u, err := url.Parse(uri)
		if err != nil {
			return "", "", fmt.Errorf("invalid object uri %q: %w", uri, err)
		}
		bucket, key, _ = strings.Cut(strings.TrimPrefix(u.Path, "/"), "/")
		if bucket == "" || key == "" {
			return "", "", fmt.Errorf("invalid object uri %q", uri)
		}
		return bucket, key, nil
	}
	if rest, ok := strings.CutPrefix(uri, uriScheme); ok {
		bucket, key, _ = strings.Cut(rest, "/")
		if bucket == "" || key == "" {
			return "", "", fmt.Errorf("invalid object uri %q", uri)
		}
		return bucket, key, nil
	}
	key = strings.TrimPrefix(uri, "/")
	if key == "" || defaultBucket == "" {
		return "", "", fmt.Errorf("invalid object uri %q", uri)
	}
	return defaultBucket, key, nil
}

func FormatURI(bucket, key string) string {
	return uriScheme + bucket + "/" + key
}
