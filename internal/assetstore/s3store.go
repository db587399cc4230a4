package assetstore

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Options configures an S3-compatible backend (AWS S3, MinIO, ...).
type S3Options struct {
	Bucket       string
	Region       string
	BaseEndpoint string
	AccessKey    string
	SecretKey    string
	UsePathStyle bool
}

var loadDefaultAWSConfig = awsconfig.LoadDefaultConfig

// S3Store keeps objects in a single bucket.
type S3Store struct {
	client *s3.Client
	bucket string
}

// NewS3Store builds the S3 client. Static credentials are used when both keys
// are given, otherwise the default AWS credential chain applies.
func NewS3Store(ctx context.Context, options S3Options) (*S3Store, error) {
	loadOptions := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(options.Region),
	}
	if options.AccessKey != "" && options.SecretKey != "" {
		loadOptions = append(loadOptions, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(options.AccessKey, options.SecretKey, ""),
		))
	}

	cfg, err := loadDefaultAWSConfig(ctx, loadOptions...)
	if err != nil {
		return nil, fmt.Errorf("in internal/assetstore/s3store.go/NewS3Store(): error while `loadDefaultAWSConfig()` calling: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if options.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(options.BaseEndpoint)
		}
		o.UsePathStyle = options.UsePathStyle
	})

	return &S3Store{
		client: client,
		bucket: options.Bucket,
	}, nil
}

// Put uploads body under key.
func (s *S3Store) Put(ctx context.Context, key string, body []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("put s3://%s/%s: %w", s.bucket, key, err)
	}

	return nil
}

// Delete removes key. S3 treats deleting a missing key as success.
func (s *S3Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete s3://%s/%s: %w", s.bucket, key, err)
	}

	return nil
}
