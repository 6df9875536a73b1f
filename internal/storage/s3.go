// Package storage keeps food images in S3 and hands out presigned links to them.
package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// DefaultLinkExpiry is how long a presigned image link stays valid
const DefaultLinkExpiry = 15 * time.Minute

// ImageStore holds S3 client and bucket info
type ImageStore struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
	expiry  time.Duration
}

// NewImageStore initializes the S3 client from the default AWS credential chain
func NewImageStore(ctx context.Context, bucket, region string) (*ImageStore, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return newImageStore(s3.NewFromConfig(awsCfg), bucket), nil
}

// NewStaticImageStore uses fixed credentials, for S3 compatible stores and tests
func NewStaticImageStore(bucket, region, accessKey, secretKey string) *ImageStore {
	client := s3.New(s3.Options{
		Region:      region,
		Credentials: credentials.NewStaticCredentialsProvider(accessKey, secretKey, ""),
	})
	return newImageStore(client, bucket)
}

func newImageStore(client *s3.Client, bucket string) *ImageStore {
	return &ImageStore{
		client:  client,
		presign: s3.NewPresignClient(client),
		bucket:  bucket,
		expiry:  DefaultLinkExpiry,
	}
}

// URL returns a presigned GET link for key.
// Values that already are absolute URLs are returned unchanged.
func (s *ImageStore) URL(ctx context.Context, key string) (string, error) {
	if strings.HasPrefix(key, "http://") || strings.HasPrefix(key, "https://") {
		return key, nil
	}
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.expiry))
	if err != nil {
		return "", fmt.Errorf("failed to presign %s: %w", key, err)
	}
	return req.URL, nil
}
