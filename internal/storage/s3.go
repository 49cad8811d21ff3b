// Package storage keeps product images in S3-compatible object storage.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"storefront/internal/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// MaxImageSize is the largest product image accepted, 5 MiB
const MaxImageSize = 5 << 20

var (
	ErrNotConfigured = errors.New("object storage is not configured")
	ErrImageType     = errors.New("image must be jpeg, png or webp")
	ErrImageTooLarge = errors.New("image exceeds 5 MiB")
	imageExtByType   = map[string]string{"image/jpeg": ".jpg", "image/png": ".png", "image/webp": ".webp"}
)

// ObjectStorage stores and removes public objects
type ObjectStorage interface {
	Put(ctx context.Context, key, contentType string, data []byte) (string, error)
	Delete(ctx context.Context, key string) error
}

var _ ObjectStorage = (*S3Storage)(nil)

// S3Storage implements ObjectStorage on any S3-compatible service
type S3Storage struct {
	client    *s3.Client
	bucket    string
	publicURL string
}

// NewS3Storage builds the client from the S3_* settings. Path-style
// addressing is used so MinIO and similar services work unchanged.
func NewS3Storage(cfg *config.Config) (*S3Storage, error) {
	if cfg.S3Bucket == "" || cfg.S3AccessKey == "" || cfg.S3SecretKey == "" {
		return nil, ErrNotConfigured
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(cfg.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.S3AccessKey, cfg.S3SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = true
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
		}
	})
	publicURL := strings.TrimRight(cfg.S3PublicURL, "/")
	if publicURL == "" {
		endpoint := cfg.S3Endpoint
		if endpoint == "" {
			endpoint = "https://s3." + cfg.S3Region + ".amazonaws.com"
		}
		publicURL = strings.TrimRight(endpoint, "/") + "/" + cfg.S3Bucket
	}
	return &S3Storage{client: client, bucket: cfg.S3Bucket, publicURL: publicURL}, nil
}

// Put uploads data under key and returns its public URL
func (s *S3Storage) Put(ctx context.Context, key, contentType string, data []byte) (string, error) {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return s.publicURL + "/" + key, nil
}

// Delete removes key; deleting a missing key is not an error
func (s *S3Storage) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// ImageKey checks an upload and returns the object key it is stored under
func ImageKey(productID uint, contentType string, size int64) (string, error) {
	ext, ok := imageExtByType[contentType]
	if !ok {
		return "", ErrImageType
	}
	if size > MaxImageSize {
		return "", ErrImageTooLarge
	}
	return "products/" + strconv.FormatUint(uint64(productID), 10) + "/" + uuid.NewString() + ext, nil
}
