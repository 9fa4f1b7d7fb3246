// Package objectstore moves files between S3 and the local filesystem.
package objectstore

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/aws/aws-sdk-go/service/s3/s3manager/s3manageriface"
	"go.uber.org/zap"

	"github.com/Tajbar-789/FeastMetrics-Restaurant-Sales-Insight/internal/config"
)

type Store struct {
	s3Client   s3iface.S3API
	downloader s3manageriface.DownloaderAPI
	uploader   s3manageriface.UploaderAPI
	logger     *zap.Logger
}

// NewStore builds an S3 session from static credentials. The keys are the
// decrypted values from the encryption section.
func NewStore(cfg config.S3Config, accessKey, secretKey string, logger *zap.Logger) (*Store, error) {
	awsCfg := &aws.Config{
		Region:      aws.String(cfg.Region),
		Credentials: credentials.NewStaticCredentials(accessKey, secretKey, ""),
	}
	if cfg.Endpoint != "" {
		awsCfg.Endpoint = aws.String(cfg.Endpoint)
		awsCfg.S3ForcePathStyle = aws.Bool(true)
	}
	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create aws session: %w", err)
	}
	return New(s3.New(sess), s3manager.NewDownloader(sess), s3manager.NewUploader(sess), logger), nil
}

// New wires a store from existing clients
func New(client s3iface.S3API, downloader s3manageriface.DownloaderAPI, uploader s3manageriface.UploaderAPI, logger *zap.Logger) *Store {
	return &Store{
		s3Client:   client,
		downloader: downloader,
		uploader:   uploader,
		logger:     logger,
	}
}

// FetchAll downloads every key from bucket into destDir, named by the key's
// base name. The first failure aborts the fetch.
func (s *Store) FetchAll(ctx context.Context, bucket string, keys []string, destDir string) ([]string, error) {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create download directory: %w", err)
	}

	paths := make([]string, 0, len(keys))
	for _, key := range keys {
		local := filepath.Join(destDir, path.Base(key))
		n, err := s.download(ctx, bucket, key, local)
		if err != nil {
			s.logger.Error("Error downloading file",
				zap.String("bucket", bucket),
				zap.String("key", key),
				zap.Error(err),
			)
			return nil, fmt.Errorf("failed to download %s: %w", key, err)
		}
		s.logger.Info("Downloaded file",
			zap.String("key", key),
			zap.String("path", local),
			zap.Int64("bytes", n),
		)
		paths = append(paths, local)
	}
	return paths, nil
}

func (s *Store) download(ctx context.Context, bucket, key, local string) (int64, error) {
	f, err := os.Create(local)
	if err != nil {
		return 0, err
	}
	n, err := s.downloader.DownloadWithContext(ctx, f, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(local)
		return 0, err
	}
	return n, nil
}

// Upload puts a local file at bucket/key and verifies it with HeadObject
func (s *Store) Upload(ctx context.Context, bucket, key, localPath string, metadata map[string]string) error {
	file, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open %s for upload: %w", localPath, err)
	}
	defer file.Close()

	meta := make(map[string]*string, len(metadata))
	for k, v := range metadata {
		meta[k] = aws.String(v)
	}

	result, err := s.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:   aws.String(bucket),
		Key:      aws.String(key),
		Body:     file,
		Metadata: meta,
	})
	if err != nil {
		return fmt.Errorf("failed to upload to S3: %w", err)
	}
	s.logger.Info("Uploaded to S3", zap.String("key", key), zap.String("location", result.Location))

	if _, err := s.s3Client.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}); err != nil {
		return fmt.Errorf("upload verification failed for %s: %w", key, err)
	}
	return nil
}

const probeKey = "feastmetrics-connection-test.txt"

// CheckAccess writes and deletes a probe object so a missing write permission
// fails the run before any report is computed.
func (s *Store) CheckAccess(ctx context.Context, bucket string) error {
	s.logger.Debug("Testing S3 access", zap.String("bucket", bucket))
	_, err := s.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(probeKey),
		Body:   strings.NewReader("connection test"),
	})
	if err != nil {
		return fmt.Errorf("S3 upload test failed for %s: %w", bucket, err)
	}

	if _, err := s.s3Client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(probeKey),
	}); err != nil {
		s.logger.Warn("Failed to clean up test file", zap.String("bucket", bucket), zap.Error(err))
	}
	return nil
}
