// Package objectstore provides access to the listing image bucket.
package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"github.com/listhub/listing-backend/config"
	"github.com/listhub/listing-backend/pkg/logger"
)

// ObjectStore is the interface for reading and writing listing images.
type ObjectStore interface {
	GetObject(ctx context.Context, objectPath string) (content []byte, contentType string, err error)
	UploadObject(ctx context.Context, objectPath string, content []byte, contentType string) error
	DeleteObject(ctx context.Context, objectPath string) error
}

// Minio is a MinIO-backed ObjectStore.
type Minio struct {
	client *minio.Client
	bucket string
}

// NewMinioClientAndInitBucket connects to MinIO and creates the listing image
// bucket when it doesn't exist yet.
func NewMinioClientAndInitBucket(ctx context.Context) (*Minio, error) {
	cfg := config.Config.Minio
	log, err := logger.GetZapLogger(ctx)
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.RootUser, cfg.RootPwd, ""),
		Secure: cfg.Secure,
	})
	if err != nil {
		log.Error("cannot connect to minio", zap.String("endpoint", endpoint), zap.Error(err))
		return nil, fmt.Errorf("connecting to minio: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("checking bucket existence: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.BucketName, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("creating bucket: %w", err)
		}
		log.Info("Successfully created bucket", zap.String("bucket", cfg.BucketName))
	}

	return &Minio{client: client, bucket: cfg.BucketName}, nil
}

// GetObject reads an object and its content type from the bucket.
func (m *Minio) GetObject(ctx context.Context, objectPath string) ([]byte, string, error) {
	obj, err := m.client.GetObject(ctx, m.bucket, objectPath, minio.GetObjectOptions{})
	if err != nil {
		return nil, "", fmt.Errorf("fetching object %s: %w", objectPath, err)
	}
	defer obj.Close()

	content, err := io.ReadAll(obj)
	if err != nil {
		return nil, "", fmt.Errorf("reading object %s: %w", objectPath, err)
	}

	stat, err := obj.Stat()
	if err != nil {
		return nil, "", fmt.Errorf("reading object %s metadata: %w", objectPath, err)
	}

	return content, stat.ContentType, nil
}

// UploadObject writes an object to the bucket.
func (m *Minio) UploadObject(ctx context.Context, objectPath string, content []byte, contentType string) error {
	_, err := m.client.PutObject(ctx, m.bucket, objectPath, bytes.NewReader(content), int64(len(content)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("uploading object %s: %w", objectPath, err)
	}
	return nil
}

// DeleteObject removes an object from the bucket.
func (m *Minio) DeleteObject(ctx context.Context, objectPath string) error {
	if err := m.client.RemoveObject(ctx, m.bucket, objectPath, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("deleting object %s: %w", objectPath, err)
	}
	return nil
}
