// Package minio stores report artifacts in an S3-compatible bucket.
package minio

import (
	"bytes"
	"context"
	"io"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/turtacn/KeyIP-Analytics/internal/config"
	"github.com/turtacn/KeyIP-Analytics/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/KeyIP-Analytics/internal/infrastructure/storage"
	"github.com/turtacn/KeyIP-Analytics/pkg/errors"
)

// DefaultBucket receives artifacts when none is configured.
const DefaultBucket = "keyip-reports"

// MinIOAPI is the subset of *minio.Client the artifact store calls.
type MinIOAPI interface {
	ListBuckets(ctx context.Context) ([]minio.BucketInfo, error)
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	PresignedGetObject(ctx context.Context, bucketName, objectName string, expiry time.Duration, reqParams url.Values) (*url.URL, error)
}

// MinIOClient is a storage.Store backed by one bucket.
type MinIOClient struct {
	client MinIOAPI
	config config.MinIOConfig
	logger logging.Logger
}

var _ storage.Store = (*MinIOClient)(nil)

// NewMinIOClient connects to cfg.Endpoint and makes sure the bucket exists.
func NewMinIOClient(ctx context.Context, cfg config.MinIOConfig, log logging.Logger) (*MinIOClient, error) {
	if cfg.Endpoint == "" {
		return nil, errors.InvalidArguments("minio endpoint is required")
	}
	applyDefaults(&cfg)

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInvalidArguments, "failed to create minio client")
	}

	c := newMinIOClient(client, cfg, log)
	if err := c.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	c.logger.Info("MinIO client connected",
		logging.String("endpoint", cfg.Endpoint),
		logging.String("bucket", cfg.Bucket),
		logging.Bool("ssl", cfg.UseSSL))
	return c, nil
}

func newMinIOClient(api MinIOAPI, cfg config.MinIOConfig, log logging.Logger) *MinIOClient {
	if log == nil {
		log = logging.NewNopLogger()
	}
	applyDefaults(&cfg)
	return &MinIOClient{client: api, config: cfg, logger: log.Named("minio")}
}

func applyDefaults(cfg *config.MinIOConfig) {
	if cfg.Region == "" {
		cfg.Region = config.DefaultMinIORegion
	}
	if cfg.Bucket == "" {
		cfg.Bucket = DefaultBucket
	}
	if cfg.PresignExpiry == 0 {
		cfg.PresignExpiry = config.DefaultPresignExpiry
	}
}

// EnsureBucket creates the artifact bucket when it is missing.
func (c *MinIOClient) EnsureBucket(ctx context.Context) error {
	exists, err := c.client.BucketExists(ctx, c.config.Bucket)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeUnavailable, "failed to check bucket existence")
	}
	if exists {
		return nil
	}
	if err := c.client.MakeBucket(ctx, c.config.Bucket, minio.MakeBucketOptions{Region: c.config.Region}); err != nil {
		return errors.Wrapf(err, errors.ErrCodeUnavailable, "failed to create bucket %s", c.config.Bucket)
	}
	c.logger.Info("Created bucket", logging.String("bucket", c.config.Bucket))
	return nil
}

// Put uploads data and returns its s3:// location with a presigned download
// URL. A presigning failure is logged and leaves URL empty.
func (c *MinIOClient) Put(ctx context.Context, key string, data []byte, contentType string) (*storage.Object, error) {
	if key == "" {
		return nil, errors.InvalidArguments("object key is required")
	}
	info, err := c.client.PutObject(ctx, c.config.Bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, errors.FromContext(ctxErr)
		}
		return nil, errors.Wrapf(err, errors.ErrCodeUnavailable, "upload %s", key)
	}

	obj := &storage.Object{
		Key:      key,
		Location: "s3://" + c.config.Bucket + "/" + key,
		Size:     info.Size,
	}
	u, err := c.client.PresignedGetObject(ctx, c.config.Bucket, key, c.config.PresignExpiry, nil)
	if err != nil {
		c.logger.Warn("Failed to presign artifact", logging.String("key", key), logging.Err(err))
	} else {
		obj.URL = u.String()
	}
	c.logger.Debug("artifact uploaded", logging.String("key", key), logging.String("etag", info.ETag))
	return obj, nil
}

// HealthCheck lists buckets to verify connectivity and credentials.
func (c *MinIOClient) HealthCheck(ctx context.Context) error {
	if _, err := c.client.ListBuckets(ctx); err != nil {
		return errors.Wrap(err, errors.ErrCodeUnavailable, "minio unreachable")
	}
	return nil
}
