// Package archive uploads audit chain snapshots to S3-compatible cold
// storage for long-term retention.
package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/lodgeline/lodgeline/internal/audit"
)

// ErrInvalidTenantID is returned when the tenant ID is empty or
// contains characters unfit for an object key.
var ErrInvalidTenantID = errors.New("invalid tenant ID")

// ObjectStore is an interface over the S3 PutObject call so tests can
// swap in a fake.
type ObjectStore interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Service snapshots a tenant's full audit chain as CBOR and uploads it.
type Service struct {
	store      ObjectStore
	bucketName string
	timeNow    func() time.Time
}

// ServiceConfig holds configuration for the archive service.
type ServiceConfig struct {
	BucketName      string
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string
}

// NewService creates a new archive service backed by an S3-compatible
// endpoint with path-style addressing.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.BucketName == "" {
		return nil, errors.New("bucket name is required")
	}
	if cfg.AccessKeyID == "" {
		return nil, errors.New("access key ID is required")
	}
	if cfg.SecretAccessKey == "" {
		return nil, errors.New("secret access key is required")
	}
	if cfg.Endpoint == "" {
		return nil, errors.New("endpoint is required")
	}

	client := s3.New(s3.Options{
		Region: "auto",
		Credentials: aws.NewCredentialsCache(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
		BaseEndpoint: aws.String(cfg.Endpoint),
		UsePathStyle: true,
	})

	return &Service{
		store:      client,
		bucketName: cfg.BucketName,
		timeNow:    time.Now,
	}, nil
}

// NewServiceWithStore creates an archive service with a custom object
// store, for testing.
func NewServiceWithStore(store ObjectStore, bucketName string) *Service {
	return &Service{
		store:      store,
		bucketName: bucketName,
		timeNow:    time.Now,
	}
}

// ObjectKey creates a unique object key for a tenant's snapshot.
// Pattern: audit/{tenantID}/{date}/{uuid}.cbor
func ObjectKey(tenantID string, takenAt time.Time) (string, error) {
	sanitized := sanitizePathComponent(tenantID)
	if sanitized == "" {
		return "", ErrInvalidTenantID
	}
	return fmt.Sprintf("audit/%s/%s/%s.cbor", sanitized, takenAt.UTC().Format("2006-01-02"), uuid.New().String()), nil
}

// sanitizePathComponent removes potentially dangerous characters from path components.
func sanitizePathComponent(s string) string {
	var result strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// Upload snapshots the tenant's chain and uploads it. Returns the
// object key of the stored snapshot.
func (s *Service) Upload(ctx context.Context, repo audit.Repository, tenantID string) (string, error) {
	data, err := audit.Snapshot(repo, tenantID)
	if err != nil {
		return "", fmt.Errorf("failed to build snapshot: %w", err)
	}

	key, err := ObjectKey(tenantID, s.timeNow())
	if err != nil {
		return "", err
	}

	_, err = s.store.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucketName),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String("application/cbor"),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload snapshot: %w", err)
	}

	return key, nil
}
