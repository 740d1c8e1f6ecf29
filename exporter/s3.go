package exporter

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	appconfig "depthflow/config"
	"depthflow/internal/partition"
	"depthflow/logger"
)

// Archiver copies exported parquet files into an S3 bucket for durable
// keeping, keyed <symbol>/<file>.
type Archiver struct {
	config   *appconfig.Config
	s3Client *s3.Client
	log      *logger.Log
}

// NewArchiver configures the AWS SDK and validates credentials. It returns
// an error rather than a half-working archiver when credentials are absent.
func NewArchiver(ctx context.Context, cfg *appconfig.Config) (*Archiver, error) {
	log := logger.GetLogger()

	loadOpts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Export.S3.Region),
	}
	if cfg.Export.S3.AccessKeyID != "" && cfg.Export.S3.SecretAccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(
				cfg.Export.S3.AccessKeyID,
				cfg.Export.S3.SecretAccessKey,
				"",
			),
		))
	}

	awsConfig, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	creds, err := awsConfig.Credentials.Retrieve(ctx)
	if err != nil || !creds.HasKeys() {
		return nil, fmt.Errorf("aws credentials not found")
	}

	s3Client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.Export.S3.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Export.S3.Endpoint)
		}
		o.UsePathStyle = cfg.Export.S3.PathStyle
	})

	log.WithComponent("archiver").WithFields(logger.Fields{
		"bucket":     cfg.Export.S3.Bucket,
		"region":     cfg.Export.S3.Region,
		"path_style": cfg.Export.S3.PathStyle,
	}).Info("archiver initialized")

	return &Archiver{config: cfg, s3Client: s3Client, log: log}, nil
}

// Archive uploads one exported file to the bucket.
func (a *Archiver) Archive(ctx context.Context, key partition.Key, path string) error {
	log := a.log.WithComponent("archiver").WithFields(logger.Fields{
		"partition": key.Class(),
		"path":      path,
	})

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read exported file: %w", err)
	}

	objectKey := fmt.Sprintf("%s/%s", strings.ToLower(key.Symbol), FileName(key))
	input := &s3.PutObjectInput{
		Bucket:      aws.String(a.config.Export.S3.Bucket),
		Key:         aws.String(objectKey),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/octet-stream"),
		Metadata: map[string]string{
			"content-type":      "parquet",
			"compression":       a.config.Export.Compression,
			"depthflow-version": a.config.Depthflow.Version,
		},
	}

	if _, err := a.s3Client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("failed to upload to S3 bucket %s: %w", a.config.Export.S3.Bucket, err)
	}

	log.WithFields(logger.Fields{
		"s3_key":    objectKey,
		"file_size": len(data),
	}).Info("exported file archived")
	return nil
}
