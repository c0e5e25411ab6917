// Package storage keeps player photos in S3-compatible object storage
// (AWS S3, Cloudflare R2, MinIO).
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/poio911/futbol-app-pwa-sub004/pkg/logger"
)

var (
	ErrDisabled        = errors.New("photo storage is not configured")
	ErrUnsupportedType = errors.New("unsupported photo content type")
	ErrInvalidConfig   = errors.New("invalid photo storage configuration")
)

// MaxPhotoBytes bounds an uploaded photo.
const MaxPhotoBytes = 5 << 20

var extensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

// ObjectAPI is the subset of *s3.Client the photo store uses.
type ObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Config describes the bucket. Endpoint is empty for AWS S3.
type Config struct {
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	PublicBaseURL   string
}

// Enabled reports whether a bucket is configured.
func (c Config) Enabled() bool { return c.Bucket != "" }

// PhotoStore uploads and removes player photos.
type PhotoStore struct {
	api     ObjectAPI
	bucket  string
	baseURL *url.URL
	log     logger.Logger
}

// New builds an S3 client from cfg. Static credentials are used when given,
// otherwise the default AWS credential chain.
func New(ctx context.Context, cfg Config, l logger.Logger) (*PhotoStore, error) {
	if !cfg.Enabled() {
		return nil, ErrDisabled
	}
	region := cfg.Region
	if region == "" {
		region = "auto"
	}
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewWithClient(client, cfg.Bucket, cfg.PublicBaseURL, l)
}

// NewWithClient wraps an existing client.
func NewWithClient(api ObjectAPI, bucket, publicBaseURL string, l logger.Logger) (*PhotoStore, error) {
	if bucket == "" {
		return nil, fmt.Errorf("%w: bucket is required", ErrInvalidConfig)
	}
	if l == nil {
		l = logger.Nop()
	}
	s := &PhotoStore{api: api, bucket: bucket, log: l.Named("photos")}
	if publicBaseURL != "" {
		u, err := url.Parse(publicBaseURL)
		if err != nil {
			return nil, fmt.Errorf("%w: public base url: %v", ErrInvalidConfig, err)
		}
		if !strings.HasSuffix(u.Path, "/") {
			u.Path += "/"
		}
		s.baseURL = u
	}
	return s, nil
}

// Upload stores a photo for playerID and returns its object key.
func (s *PhotoStore) Upload(ctx context.Context, playerID, contentType string, body io.Reader) (string, error) {
	ext, ok := extensions[contentType]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedType, contentType)
	}
	key := "players/" + playerID + "/" + uuid.NewString() + ext
	_, err := s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("put object %s: %w", key, err)
	}
	s.log.Debug(ctx, "photo uploaded", logger.String("player_id", playerID), logger.String("key", key))
	return key, nil
}

// Delete removes an object. An empty key is a no-op.
func (s *PhotoStore) Delete(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	_, err := s.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete object %s: %w", key, err)
	}
	return nil
}

// URL returns the public URL for key, or "" without a public base URL.
func (s *PhotoStore) URL(key string) string {
	if s.baseURL == nil || key == "" {
		return ""
	}
	return s.baseURL.ResolveReference(&url.URL{Path: strings.TrimPrefix(key, "/")}).String()
}
