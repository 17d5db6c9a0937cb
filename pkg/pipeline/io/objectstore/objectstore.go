// Package objectstore uploads run reports to S3-compatible storage (Supabase Storage, MinIO).
package objectstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Config addresses one bucket.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
	// Prefix is prepended to every object key, e.g. "enrichment-reports".
	Prefix string
}

// ObjectAPI is the subset of *minio.Client the uploader needs.
type ObjectAPI interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// Uploader writes JSON reports into a bucket.
type Uploader struct {
	api    ObjectAPI
	bucket string
	region string
	prefix string
}

// New builds an Uploader backed by a minio client.
func New(cfg Config) (*Uploader, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" || strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("object storage endpoint and bucket are required")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create object storage client: %w", err)
	}
	return NewWithAPI(client, cfg), nil
}

// NewWithAPI builds an Uploader over an existing client.
func NewWithAPI(api ObjectAPI, cfg Config) *Uploader {
	return &Uploader{
		api:    api,
		bucket: strings.TrimSpace(cfg.Bucket),
		region: strings.TrimSpace(cfg.Region),
		prefix: strings.Trim(strings.TrimSpace(cfg.Prefix), "/"),
	}
}

// EnsureBucket creates the bucket when it does not exist.
func (u *Uploader) EnsureBucket(ctx context.Context) error {
	exists, err := u.api.BucketExists(ctx, u.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", u.bucket, err)
	}
	if exists {
		return nil
	}
	if err := u.api.MakeBucket(ctx, u.bucket, minio.MakeBucketOptions{Region: u.region}); err != nil {
		return fmt.Errorf("create bucket %s: %w", u.bucket, err)
	}
	return nil
}

// ReportKey returns the object key for a run report.
func (u *Uploader) ReportKey(runID string) string {
	key := "runs/" + sanitizeKey(runID) + ".json"
	if u.prefix != "" {
		key = u.prefix + "/" + key
	}
	return key
}

// UploadReport writes rep as JSON and returns the object key.
func (u *Uploader) UploadReport(ctx context.Context, rep RunReport) (string, error) {
	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode report: %w", err)
	}
	key := u.ReportKey(rep.RunID)
	_, err = u.api.PutObject(ctx, u.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return "", fmt.Errorf("upload report %s/%s: %w", u.bucket, key, err)
	}
	return key, nil
}

func sanitizeKey(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	if b.Len() == 0 {
		return "unnamed"
	}
	return b.String()
}
