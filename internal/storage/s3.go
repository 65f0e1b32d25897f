package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/murshid-ai/murshid/internal/log"
)

// S3Config holds the settings for an S3-compatible bucket. Endpoint points
// at the provider (for R2: https://<account>.r2.cloudflarestorage.com).
type S3Config struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	Logger    log.Logger
}

func (c *S3Config) validate() error {
	if c.Endpoint == "" || c.Bucket == "" {
		return errors.New("storage endpoint and bucket are required")
	}
	if c.AccessKey == "" || c.SecretKey == "" {
		return errors.New("storage credentials are required")
	}
	if c.Logger == nil {
		return errors.New("logger is required")
	}
	return nil
}

// S3Store is the production Store against an S3-compatible endpoint.
type S3Store struct {
	client *s3.Client
	bucket string
	logger log.Logger
}

// NewS3Store creates an S3Store for the configured bucket.
func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid storage config: %w", err)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = &cfg.Endpoint
		// R2 requires path-style addressing.
		o.UsePathStyle = true
	})

	return &S3Store{
		client: client,
		bucket: cfg.Bucket,
		logger: cfg.Logger,
	}, nil
}

// Put writes data under key.
func (s *S3Store) Put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &s.bucket,
		Key:         &key,
		Body:        bytes.NewReader(data),
		ContentType: &contentType,
	})
	if err != nil {
		return fmt.Errorf("putting object %q: %w", key, err)
	}
	s.logger.Debug("object stored", "key", key, "bytes", len(data))
	return nil
}

// Get returns the bytes stored under key.
func (s *S3Store) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &s.bucket,
		Key:    &key,
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("getting object %q: %w", key, err)
	}
	defer func() { _ = out.Body.Close() }()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("reading object %q: %w", key, err)
	}
	return data, nil
}

// Delete removes the object under key.
func (s *S3Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: &s.bucket,
		Key:    &key,
	})
	if err != nil {
		return fmt.Errorf("deleting object %q: %w", key, err)
	}
	return nil
}
