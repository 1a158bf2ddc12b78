// Package archive stores the raw BLW files that flow through the system
// in object storage: the source text of every import as received, and
// every export as published. The database keeps the decoded data; the
// archive keeps the bytes, so a disputed import can always be re-read.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const blwContentType = "text/plain; charset=utf-8"

// Config carries the object storage connection settings.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type Archive struct {
	client *minio.Client
	bucket string
}

// New connects to the object store and ensures the bucket exists.
func New(ctx context.Context, cfg Config) (*Archive, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("connect object store: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", cfg.Bucket, err)
		}
	}
	return &Archive{client: client, bucket: cfg.Bucket}, nil
}

// StoreSource archives the BLW text a regatta was imported from and
// returns the object key.
func (a *Archive) StoreSource(ctx context.Context, regattaID, text string) (string, error) {
	key := fmt.Sprintf("sources/%s/%s.blw", regattaID, time.Now().UTC().Format("20060102T150405Z"))
	if err := a.put(ctx, key, text); err != nil {
		return "", err
	}
	return key, nil
}

// StoreExport archives a published export under its download filename.
func (a *Archive) StoreExport(ctx context.Context, regattaID, filename, text string) (string, error) {
	key := fmt.Sprintf("exports/%s/%s", regattaID, filename)
	if err := a.put(ctx, key, text); err != nil {
		return "", err
	}
	return key, nil
}

// Fetch returns the archived text at the given object key.
func (a *Archive) Fetch(ctx context.Context, key string) (string, error) {
	obj, err := a.client.GetObject(ctx, a.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return "", fmt.Errorf("get object %s: %w", key, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return "", fmt.Errorf("read object %s: %w", key, err)
	}
	return string(data), nil
}

func (a *Archive) put(ctx context.Context, key, text string) error {
	reader := bytes.NewReader([]byte(text))
	_, err := a.client.PutObject(ctx, a.bucket, key, reader, int64(reader.Len()), minio.PutObjectOptions{
		ContentType: blwContentType,
	})
	if err != nil {
		return fmt.Errorf("put object %s: %w", key, err)
	}
	return nil
}
