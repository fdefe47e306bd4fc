// Package objectstore uploads processed documents to S3-compatible storage.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"autoingest/internal/config"
	"autoingest/internal/logging"
	"autoingest/internal/services"
)

// Uploader stores a local file under key and returns the stored object identifier.
type Uploader interface {
	Upload(ctx context.Context, key, filePath, contentType string, metadata map[string]string) (string, error)
}

// MinioStore uploads to a single bucket, creating it on first use.
type MinioStore struct {
	client *minio.Client
	bucket string
	region string
	logger *slog.Logger

	mu          sync.Mutex
	bucketReady bool
}

// NewMinio constructs a MinIO-backed uploader from upload settings.
func NewMinio(cfg config.Upload, logger *slog.Logger) (*MinioStore, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "objectstore", "init", "endpoint required", nil)
	}
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "objectstore", "init", "bucket required", nil)
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "objectstore", "init", "create client", err)
	}
	return &MinioStore{
		client: client,
		bucket: cfg.Bucket,
		region: cfg.Region,
		logger: logging.NewComponentLogger(logger, "objectstore"),
	}, nil
}

// Upload implements Uploader.
func (s *MinioStore) Upload(ctx context.Context, key, filePath, contentType string, metadata map[string]string) (string, error) {
	if err := s.ensureBucket(ctx); err != nil {
		return "", err
	}
	info, err := s.client.FPutObject(ctx, s.bucket, key, filePath, minio.PutObjectOptions{
		ContentType:  contentType,
		UserMetadata: metadata,
	})
	if err != nil {
		return "", services.Wrap(services.ErrExternalTool, "objectstore", "put object", key, err)
	}
	s.logger.Debug("object stored",
		logging.String(logging.FieldEventType, "object_stored"),
		logging.String("bucket", s.bucket),
		logging.String("key", info.Key),
		logging.Int64("size", info.Size),
	)
	return s.bucket + "/" + info.Key, nil
}

// BucketExists reports whether the configured bucket exists.
func (s *MinioStore) BucketExists(ctx context.Context) (bool, error) {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return false, services.Wrap(services.ErrExternalTool, "objectstore", "bucket exists", s.bucket, err)
	}
	return exists, nil
}

func (s *MinioStore) ensureBucket(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bucketReady {
		return nil
	}
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "objectstore", "bucket exists", s.bucket, err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
			var resp minio.ErrorResponse
			if !errors.As(err, &resp) || resp.Code != "BucketAlreadyOwnedByYou" {
				return services.Wrap(services.ErrExternalTool, "objectstore", "make bucket", s.bucket, err)
			}
		}
		s.logger.Info("bucket created",
			logging.String(logging.FieldEventType, "bucket_created"),
			logging.String("bucket", s.bucket),
		)
	}
	s.bucketReady = true
	return nil
}

// ObjectKey builds `<criticality>/<yyyy>/<mm>/<checksum><ext>` with a
// lowercase, space-free criticality segment.
func ObjectKey(criticality, checksum, ext string, at time.Time) string {
	segment := strings.ToLower(strings.TrimSpace(criticality))
	segment = strings.Join(strings.Fields(segment), "-")
	if segment == "" {
		segment = "unclassified"
	}
	name := checksum + strings.ToLower(ext)
	return path.Join(segment, fmt.Sprintf("%04d", at.Year()), fmt.Sprintf("%02d", int(at.Month())), name)
}
