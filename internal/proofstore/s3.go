package proofstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// DefaultURLExpiry is lifetime of presigned proof links
const DefaultURLExpiry = 15 * time.Minute

// Config holds S3 bucket parameters
type Config struct {
	Region          string
	Bucket          string
	Endpoint        string // optional, e.g. MinIO
	AccessKeyID     string // optional, falls back to default credentials chain
	SecretAccessKey string
	PathStyle       bool
	URLExpiry       time.Duration
}

// Store resolves payment proof references into downloadable links
type Store struct {
	bucket  string
	presign *s3.PresignClient
	expiry  time.Duration
}

// New creates S3 backed Store
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	expiry := cfg.URLExpiry
	if expiry <= 0 {
		expiry = DefaultURLExpiry
	}

	return &Store{
		bucket:  cfg.Bucket,
		presign: s3.NewPresignClient(client),
		expiry:  expiry,
	}, nil
}

// ProofURL returns link for proof reference. Absolute http(s) references are returned unchanged,
// anything else is treated as an object key and presigned.
func (s *Store) ProofURL(ctx context.Context, ref string) (string, error) {
	if ref == "" {
		return "", nil
	}
	if u, err := url.Parse(ref); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		return ref, nil
	}

	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(strings.TrimPrefix(ref, "/")),
	}, s3.WithPresignExpires(s.expiry))
	if err != nil {
		return "", fmt.Errorf("presign proof %s: %w", ref, err)
	}

	return req.URL, nil
}

// Passthrough returns references unchanged
type Passthrough struct{}

// ProofURL returns ref
func (Passthrough) ProofURL(_ context.Context, ref string) (string, error) {
	return ref, nil
}
