package proof

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Config описывает подключение к S3-совместимому хранилищу.
type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
}

// NewS3Client создаёт клиент MinIO.
func NewS3Client(cfg S3Config) (*minio.Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("s3 endpoint is required")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create s3 client: %w", err)
	}

	return client, nil
}

// S3Store сохраняет подтверждения в бакет S3.
type S3Store struct {
	client *minio.Client
	bucket string
	now    func() time.Time

	ensureOnce sync.Once
	ensureErr  error
}

func NewS3Store(client *minio.Client, bucket string) *S3Store {
	return &S3Store{
		client: client,
		bucket: strings.TrimSpace(bucket),
		now:    time.Now,
	}
}

// EnsureBucket создаёт бакет, если его ещё нет. Проверка выполняется один раз.
func (s *S3Store) EnsureBucket(ctx context.Context) error {
	if s.client == nil {
		return fmt.Errorf("s3 client is nil")
	}
	if s.bucket == "" {
		return fmt.Errorf("s3 bucket is empty")
	}

	s.ensureOnce.Do(func() {
		exists, err := s.client.BucketExists(ctx, s.bucket)
		if err != nil {
			s.ensureErr = err
			return
		}
		if exists {
			return
		}
		s.ensureErr = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{})
	})

	if s.ensureErr != nil {
		return fmt.Errorf("ensure s3 bucket %q: %w", s.bucket, s.ensureErr)
	}

	return nil
}

func (s *S3Store) Put(ctx context.Context, a Artifact) (string, error) {
	if err := Validate(a); err != nil {
		return "", err
	}
	if err := s.EnsureBucket(ctx); err != nil {
		return "", err
	}

	key := objectKey(s.now(), uuid.NewString(), a.ContentType)
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(a.Data), int64(len(a.Data)), minio.PutObjectOptions{
		ContentType:  normalizeType(a.ContentType),
		UserMetadata: map[string]string{"original-name": a.Name},
	})
	if err != nil {
		return "", fmt.Errorf("put object to s3: %w", err)
	}

	return "s3://" + s.bucket + "/" + key, nil
}

func objectKey(now time.Time, id, contentType string) string {
	return "proofs/" + now.UTC().Format("2006/01/02") + "/" + id + extension(contentType)
}
