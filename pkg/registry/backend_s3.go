//go:build aws

package registry

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Backend persists the registry snapshot as a single object in AWS S3
// (or an S3-compatible endpoint such as MinIO/LocalStack).
type S3Backend struct {
	client *s3.Client
	bucket string
	key    string
}

// S3BackendConfig configures an S3Backend.
type S3BackendConfig struct {
	Bucket   string
	Region   string
	Endpoint string // optional, for MinIO/LocalStack
	Key      string // object key, e.g. "krystal-gate/state.json"
}

// NewS3Backend constructs an S3Backend using the default AWS credential
// chain.
func NewS3Backend(ctx context.Context, cfg S3BackendConfig) (*S3Backend, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("registry: aws config load failed: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Backend{client: client, bucket: cfg.Bucket, key: cfg.Key}, nil
}

func (b *S3Backend) Load(ctx context.Context) ([]byte, error) {
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key),
	})
	if err != nil {
		return b.loadBackup(ctx)
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

func (b *S3Backend) loadBackup(ctx context.Context) ([]byte, error) {
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key + ".bak"),
	})
	if err != nil {
		return nil, ErrNoSnapshot
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

func (b *S3Backend) Save(ctx context.Context, data []byte) error {
	if prior, err := b.Load(ctx); err == nil {
		_, _ = b.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket: aws.String(b.bucket),
			Key:    aws.String(b.key + ".bak"),
			Body:   bytes.NewReader(prior),
		})
	}

	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(b.key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("registry: s3 put failed: %w", err)
	}
	return nil
}
