package artifact

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"quote-service/internal/util"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// DefaultLinkTTL is how long a signed quote link stays valid
const DefaultLinkTTL = 7 * 24 * time.Hour

const pdfContentType = "application/pdf"

// Config describes the S3-compatible bucket quotes are stored in
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
}

// Store keeps generated quote documents on S3-compatible storage
type Store struct {
	client *minio.Client
	bucket string
	logger *zap.Logger
}

// NewStore creates a client for cfg. No request is made until first use.
func NewStore(cfg Config) (*Store, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	return &Store{
		client: client,
		bucket: cfg.Bucket,
		logger: util.GetLogger(),
	}, nil
}

// EnsureBucket creates the bucket when it does not exist
func (s *Store) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket %s: %w", s.bucket, err)
	}
	if exists {
		return nil
	}

	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", s.bucket, err)
	}
	s.logger.Info("Created artifact bucket", zap.String("bucket", s.bucket))
	return nil
}

// QuoteKey is the object key of an order's quote document
func QuoteKey(orderNumber string) string {
	return fmt.Sprintf("quotes/%s.pdf", strings.ReplaceAll(orderNumber, "/", "-"))
}

// Put writes data under key, replacing any previous object
func (s *Store) Put(ctx context.Context, key string, data []byte) error {
	ctx, span := util.StartSpan(ctx, "ArtifactStore.Put")
	defer span.End()

	info, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: pdfContentType})
	if err != nil {
		util.RecordError(span, err)
		return fmt.Errorf("failed to store %s: %w", key, err)
	}

	s.logger.Debug("Stored artifact",
		zap.String("key", key),
		zap.Int64("size", info.Size),
		zap.String("etag", info.ETag))
	return nil
}

// SignedURL returns a time-limited download link for key. ttl <= 0 uses DefaultLinkTTL.
func (s *Store) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = DefaultLinkTTL
	}

	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, ttl, nil)
	if err != nil {
		return "", fmt.Errorf("failed to sign %s: %w", key, err)
	}
	return u.String(), nil
}
