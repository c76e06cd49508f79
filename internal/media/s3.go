// internal/media/s3.go
// Package media fronts the upload backend for guest-submitted photos and
// videos. Clients upload directly to S3-compatible storage via presigned PUT
// URLs; the record store only ever persists the resulting durable URL, never
// raw bytes.
package media

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Client wraps the AWS S3 client for upload operations.
type S3Client struct {
	client   *s3.Client
	endpoint string
	bucket   string
}

// NewS3Client creates a client for AWS S3 or an S3-compatible service such
// as MinIO.
func NewS3Client(endpoint, region, bucket, accessKey, secretKey string) (*S3Client, error) {
	cfg, err := config.LoadDefaultConfig(context.TODO(),
		config.WithRegion(region),
		config.WithBaseEndpoint(endpoint),
		config.WithCredentialsProvider(aws.CredentialsProviderFunc(
			func(ctx context.Context) (aws.Credentials, error) {
				return aws.Credentials{
					AccessKeyID:     accessKey,
					SecretAccessKey: secretKey,
				}, nil
			})),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = true // Required for MinIO and other S3-compatible services
	})

	return &S3Client{
		client:   client,
		endpoint: strings.TrimRight(endpoint, "/"),
		bucket:   bucket,
	}, nil
}

// PresignUpload generates a presigned PUT URL so the guest's browser uploads
// directly to storage without streaming through this service.
func (s *S3Client) PresignUpload(ctx context.Context, key string, expires time.Duration) (string, error) {
	presignClient := s3.NewPresignClient(s.client)

	presignResult, err := presignClient.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = expires
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}

	return presignResult.URL, nil
}

// ObjectURL returns the durable public URL for an uploaded object. This is
// the URL guests submit back through the media append endpoint.
func (s *S3Client) ObjectURL(key string) string {
	return fmt.Sprintf("%s/%s/%s", s.endpoint, s.bucket, key)
}
