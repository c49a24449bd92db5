package storage

import (
	"bytes"
	"context"
	"fmt"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	domain "github.com/andriansyh/safesight/internal/domain/inspections"
)

type Store struct {
	client     *minio.Client
	bucketName string
	region     string
	publicBase string
}

// New buat koneksi MinIO
func New(ctx context.Context, endpoint, region, bucket, accessKey, secretKey string, useSSL bool, publicBase string) (*Store, error) {
	cli, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
		Region: region,
	})
	if err != nil {
		return nil, err
	}

	// pastikan bucket ada
	exists, err := cli.BucketExists(ctx, bucket)
	if err != nil {
		return nil, err
	}
	if !exists {
		if err := cli.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: region}); err != nil {
			return nil, err
		}
	}

	if publicBase == "" {
		scheme := "http"
		if useSSL {
			scheme = "https"
		}
		publicBase = fmt.Sprintf("%s://%s", scheme, cli.EndpointURL().Host)
	}

	return &Store{client: cli, bucketName: bucket, region: region, publicBase: publicBase}, nil
}

// Put implements inspections.BlobStore: uploads normalized image bytes and
// returns a publicly resolvable URL. The bucket must allow anonymous reads;
// a private bucket would need presigned URLs instead.
func (s *Store) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	_, err := s.client.PutObject(ctx, s.bucketName, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("%w: put %s: %v", domain.ErrStorageUnavailable, key, err)
	}

	return fmt.Sprintf("%s/%s/%s", s.publicBase, s.bucketName, key), nil
}
