// Package evidence archives the frame that confirmed an incident to
// S3-compatible object storage. Upload failures never block alerting.
package evidence

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"safeguard/internal/analysis"
	"safeguard/internal/config"
)

type Store struct {
	client     *minio.Client
	bucketName string
	region     string
	initOnce   sync.Once
	initErr    error
}

func New(cfg config.EvidenceConfig) (*Store, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("s3 endpoint is required")
	}
	access := strings.TrimSpace(cfg.AccessKey)
	secret := strings.TrimSpace(cfg.SecretKey)
	if access == "" || secret == "" {
		return nil, fmt.Errorf("s3 access key and secret key are required")
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(access, secret, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}

	return &Store{client: client, bucketName: bucket, region: region}, nil
}

func (s *Store) ensureBucket(ctx context.Context) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("store is nil")
	}
	s.initOnce.Do(func() {
		exists, err := s.client.BucketExists(ctx, s.bucketName)
		if err != nil {
			s.initErr = err
			return
		}
		if exists {
			return
		}
		s.initErr = s.client.MakeBucket(ctx, s.bucketName, minio.MakeBucketOptions{Region: s.region})
	})
	return s.initErr
}

// Put stores the confirming frame under <incidentID>/frame.<ext>.
func (s *Store) Put(ctx context.Context, incidentID string, frame analysis.FrameSample) error {
	if s == nil {
		return fmt.Errorf("store is nil")
	}
	incidentID = strings.TrimSpace(incidentID)
	if incidentID == "" {
		return fmt.Errorf("incident id is required")
	}
	if len(frame.Data) == 0 {
		return fmt.Errorf("frame is empty")
	}
	if err := s.ensureBucket(ctx); err != nil {
		return fmt.Errorf("ensure bucket: %w", err)
	}

	contentType := frame.MIME
	if contentType == "" {
		contentType = "image/jpeg"
	}
	key := ObjectKey(incidentID, contentType)
	_, err := s.client.PutObject(ctx, s.bucketName, key, bytes.NewReader(frame.Data), int64(len(frame.Data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	return err
}

// ObjectKey builds the storage key for an incident's frame.
func ObjectKey(incidentID, contentType string) string {
	ext := "jpg"
	if strings.EqualFold(contentType, "image/png") {
		ext = "png"
	}
	return strings.TrimSpace(incidentID) + "/frame." + ext
}
