/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package ingest

import (
	"context"
	"fmt"
	"io"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
)

// S3Config contains S3-compatible object storage configuration.
type S3Config struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	Bucket          string
	Endpoint        string // For S3-compatible services (MinIO, Spaces, etc.)
	PublicBaseURL   string // Optional CDN/CloudFront URL
	UsePathStyle    bool   // Required for MinIO
}

// S3Storage implements Storage using S3-compatible object storage.
type S3Storage struct {
	client *s3.Client
	cfg    S3Config
	logger zerolog.Logger
}

// NewS3Storage creates an S3-based storage backend.
func NewS3Storage(ctx context.Context, cfg S3Config, logger zerolog.Logger) (*S3Storage, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = &cfg.Endpoint
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	logger.Info().Str("bucket", cfg.Bucket).Str("region", cfg.Region).Msg("s3 storage initialized")
	return &S3Storage{client: client, cfg: cfg, logger: logger}, nil
}

// Store uploads the payload under key.
func (s *S3Storage) Store(ctx context.Context, key string, file io.Reader) (string, error) {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: &s.cfg.Bucket,
		Key:    &key,
		Body:   file,
	})
	if err != nil {
		return "", fmt.Errorf("put object %q: %w", key, err)
	}
	s.logger.Debug().Str("key", key).Msg("s3 storage: object stored")
	return key, nil
}

// Delete removes the object for key.
func (s *S3Storage) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: &s.cfg.Bucket,
		Key:    &key,
	})
	if err != nil {
		return fmt.Errorf("delete object %q: %w", key, err)
	}
	return nil
}

// URL returns the public URL for an object.
func (s *S3Storage) URL(key string) string {
	if s.cfg.PublicBaseURL != "" {
		return strings.TrimRight(s.cfg.PublicBaseURL, "/") + "/" + key
	}
	if s.cfg.Endpoint != "" {
		return fmt.Sprintf("%s/%s/%s", strings.TrimRight(s.cfg.Endpoint, "/"), s.cfg.Bucket, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.cfg.Bucket, s.cfg.Region, key)
}

// CheckAccess verifies the bucket is reachable.
func (s *S3Storage) CheckAccess(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: &s.cfg.Bucket})
	if err != nil {
		return fmt.Errorf("head bucket %q: %w", s.cfg.Bucket, err)
	}
	return nil
}
