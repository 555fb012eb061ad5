package media

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"ecocivic/api/internal/util"
)

type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	// PublicURL is the base the stored URLs are built from. Defaults to the
	// endpoint.
	PublicURL string
}

// objectStore is the subset of *minio.Client the uploader needs.
type objectStore interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucket, object string, reader io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// MinIO offloads data-URI photos to an S3 compatible bucket and persists
// the object URL instead. Plain URLs pass through untouched.
type MinIO struct {
	client    objectStore
	bucket    string
	publicURL string
	newID     util.IDFunc

	mu          sync.Mutex
	bucketReady bool
}

func NewMinIO(cfg MinIOConfig) (*MinIO, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("media: minio endpoint is required")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("media: create minio client: %w", err)
	}
	publicURL := cfg.PublicURL
	if publicURL == "" {
		publicURL = client.EndpointURL().String()
	}
	return newMinIO(client, cfg.Bucket, publicURL, util.NewID), nil
}

func newMinIO(client objectStore, bucket, publicURL string, newID util.IDFunc) *MinIO {
	return &MinIO{
		client:    client,
		bucket:    bucket,
		publicURL: strings.TrimRight(publicURL, "/"),
		newID:     newID,
	}
}

func (m *MinIO) Resolve(ctx context.Context, photoURL string) (string, error) {
	if !IsDataURI(photoURL) {
		return photoURL, nil
	}
	photo, err := ParseDataURI(photoURL)
	if err != nil {
		return "", err
	}
	if err := m.ensureBucket(ctx); err != nil {
		return "", err
	}

	object := fmt.Sprintf("photos/%s.%s", m.newID("photo"), photo.Extension())
	_, err = m.client.PutObject(ctx, m.bucket, object, bytes.NewReader(photo.Data), int64(len(photo.Data)), minio.PutObjectOptions{
		ContentType: photo.MediaType,
	})
	if err != nil {
		return "", fmt.Errorf("media: upload %s: %w", object, err)
	}
	return fmt.Sprintf("%s/%s/%s", m.publicURL, m.bucket, object), nil
}

func (m *MinIO) ensureBucket(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.bucketReady {
		return nil
	}
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return fmt.Errorf("media: check bucket: %w", err)
	}
	if !exists {
		if err := m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("media: create bucket: %w", err)
		}
	}
	m.bucketReady = true
	return nil
}

// New returns a MinIO uploader when an endpoint is configured and keeps
// photos inline otherwise.
func New(cfg MinIOConfig) (Store, error) {
	if cfg.Endpoint == "" {
		return Inline{}, nil
	}
	m, err := NewMinIO(cfg)
	if err != nil {
		return nil, err
	}
	return m, nil
}
