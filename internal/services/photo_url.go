package services

import (
	"context"
	"fmt"
	"net/url"
	"time"

	appconfig "match-relay-backend/internal/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
)

// objectPresigner is the part of *s3.PresignClient the resolver uses
type objectPresigner interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// S3PhotoResolver presigns profile photos stored as S3 object keys.
// Values that are already absolute URLs are returned unchanged.
type S3PhotoResolver struct {
	presigner objectPresigner
	bucket    string
	ttl       time.Duration
}

// NewS3PhotoResolver creates a resolver for the configured bucket
func NewS3PhotoResolver(ctx context.Context, cfg appconfig.AWSConfig) (*S3PhotoResolver, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return newS3PhotoResolver(s3.NewPresignClient(client), cfg.S3Bucket, cfg.PresignTTL), nil
}

func newS3PhotoResolver(presigner objectPresigner, bucket string, ttl time.Duration) *S3PhotoResolver {
	return &S3PhotoResolver{
		presigner: presigner,
		bucket:    bucket,
		ttl:       ttl,
	}
}

// Resolve returns a loadable URL for stored, or "" if none can be made
func (r *S3PhotoResolver) Resolve(ctx context.Context, stored string) string {
	if stored == "" {
		return ""
	}
	if u, err := url.Parse(stored); err == nil && u.IsAbs() {
		return stored
	}

	request, err := r.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(stored),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = r.ttl
	})
	if err != nil {
		log.Warn().Err(err).Str("key", stored).Msg("Failed to presign profile photo")
		return ""
	}
	return request.URL
}
