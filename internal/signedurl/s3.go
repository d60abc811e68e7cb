package signedurl

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Signer presigns GET requests against one bucket.
type S3Signer struct {
	bucket  string
	presign *s3.PresignClient
}

// NewS3Signer loads the default AWS credential chain for region.
func NewS3Signer(ctx context.Context, bucket, region string) (*S3Signer, error) {
	if bucket == "" {
		return nil, errors.New("signedurl: bucket is required")
	}
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("signedurl: load aws config: %w", err)
	}
	return &S3Signer{
		bucket:  bucket,
		presign: s3.NewPresignClient(s3.NewFromConfig(cfg)),
	}, nil
}

func (s *S3Signer) Sign(ctx context.Context, key string, validity time.Duration) (string, error) {
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(validity))
	if err != nil {
		return "", err
	}
	return req.URL, nil
}
