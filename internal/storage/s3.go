package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const defaultS3Region = "us-east-1"

// s3Store mirrors pages into an S3 bucket. A custom endpoint with
// path-style addressing covers MinIO and other S3-compatible stores.
type s3Store struct {
	client *s3.Client
	bucket string
	prefix string
	logger *slog.Logger
}

func newS3Store(ctx context.Context, settings map[string]string, logger *slog.Logger) (*s3Store, error) {
	bucket := settings["bucket"]
	if bucket == "" {
		return nil, errors.New("s3 storage requires a bucket setting")
	}
	region := settings["region"]
	if region == "" {
		region = defaultS3Region
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if accessKey, secretKey := settings["access_key_id"], settings["secret_access_key"]; accessKey != "" && secretKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, ""),
		))
	}

	endpoint := settings["endpoint"]
	if endpoint != "" {
		resolver := aws.EndpointResolverWithOptionsFunc(
			func(service, region string, options ...interface{}) (aws.Endpoint, error) {
				return aws.Endpoint{
					URL:               endpoint,
					HostnameImmutable: true,
					SigningRegion:     region,
				}, nil
			},
		)
		loadOpts = append(loadOpts, awsconfig.WithEndpointResolverWithOptions(resolver))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.UsePathStyle = true
		}
	})

	logger.Info("s3 storage initialized", "bucket", bucket, "region", region)

	return &s3Store{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(settings["root"], "/"),
		logger: logger,
	}, nil
}

func (s *s3Store) Write(ctx context.Context, path string, data []byte) error {
	key := path
	if s.prefix != "" {
		key = s.prefix + "/" + path
	}
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("putting object %s: %w", key, err)
	}
	s.logger.Debug("wrote object", "bucket", s.bucket, "key", key, "bytes", len(data))
	return nil
}
