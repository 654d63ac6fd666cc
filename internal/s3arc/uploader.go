// Copyright (c) 2024 Scout Analytics, Inc. All rights reserved.

// Package s3arc archives completed datasets to S3.
package s3arc

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/scout-analytics/asset-pipeline/internal/config"
	"github.com/scout-analytics/asset-pipeline/internal/util"
	"go.uber.org/zap"
)

const (
	// Max retries for S3 operations
	maxS3Retries = 5
	// Initial retry delay
	initialRetryDelay = 1 * time.Second
)

// Uploader handles S3 uploads of dataset files, with multipart handled by the
// transfer manager.
type Uploader struct {
	uploader *manager.Uploader
	config   *config.Config
	logger   *zap.Logger
}

// NewUploader creates a new S3 uploader against the configured bucket.
func NewUploader(cfg *config.Config, logger *zap.Logger) (*Uploader, error) {
	// Vault credentials are a fallback; the SDK default chain (env vars,
	// shared config, SSO cache, IAM roles) is tried first.
	util.LoadAWSCredentialsFromVault()

	ctx := context.Background()
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.AWSRegion),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	// Custom endpoint via environment variable, for LocalStack testing.
	endpoint := os.Getenv("AWS_ENDPOINT_URL")
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = awssdk.String(endpoint)
			o.UsePathStyle = true // required for LocalStack
		}
	})
	if endpoint != "" {
		logger.Info("Using custom S3 endpoint", zap.String("endpoint", endpoint))
	}

	up := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = 10 * 1024 * 1024
		u.Concurrency = 3
	})

	return &Uploader{
		uploader: up,
		config:   cfg,
		logger:   logger,
	}, nil
}

// ArchiveDataset uploads a completed dataset file under the configured prefix
// and returns the S3 key.
func (u *Uploader) ArchiveDataset(ctx context.Context, datasetPath string) (string, error) {
	s3Key := fmt.Sprintf("%s/datasets/%s", u.config.S3Prefix, filepath.Base(datasetPath))
	if err := u.UploadFileWithRetry(ctx, datasetPath, s3Key); err != nil {
		return "", err
	}
	return s3Key, nil
}

// UploadFile uploads a file to S3; the transfer manager switches to multipart
// for large files automatically.
func (u *Uploader) UploadFile(ctx context.Context, filePath, s3Key string) error {
	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	fileInfo, err := file.Stat()
	if err != nil {
		return fmt.Errorf("failed to get file info: %w", err)
	}

	u.logger.Info("Uploading file to S3",
		zap.String("file", filePath),
		zap.String("s3_key", s3Key),
		zap.Int64("size", fileInfo.Size()))

	_, err = u.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: awssdk.String(u.config.S3Bucket),
		Key:    awssdk.String(s3Key),
		Body:   file,
	})
	if err != nil {
		return fmt.Errorf("failed to upload file: %w", err)
	}

	u.logger.Info("File uploaded successfully",
		zap.String("s3_key", s3Key),
		zap.Int64("size", fileInfo.Size()))

	return nil
}

// UploadFileWithRetry uploads a file with exponential backoff.
func (u *Uploader) UploadFileWithRetry(ctx context.Context, filePath, s3Key string) error {
	var lastErr error
	delay := initialRetryDelay

	for attempt := 1; attempt <= maxS3Retries; attempt++ {
		err := u.UploadFile(ctx, filePath, s3Key)
		if err == nil {
			return nil
		}

		lastErr = err
		if attempt < maxS3Retries {
			u.logger.Warn("Upload failed, retrying",
				zap.String("file", filePath),
				zap.Int("attempt", attempt),
				zap.Int("max_retries", maxS3Retries),
				zap.Duration("delay", delay),
				zap.Error(err))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
			delay *= 2
		}
	}

	return fmt.Errorf("upload failed after %d attempts: %w", maxS3Retries, lastErr)
}
