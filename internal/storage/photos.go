package storage

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"log/slog"
	"mime/multipart"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/delish/storefront/internal/config"
	"github.com/delish/storefront/internal/models"
)

// Uploaded photos are resized to this width, height follows the aspect ratio.
const photoWidth = 800

// PhotoStore validates, resizes and persists store photos in a MinIO bucket.
type PhotoStore struct {
	client   *minio.Client
	bucket   string
	endpoint string
	useSSL   bool
}

// NewPhotoStore connects to MinIO and makes sure the photo bucket exists.
func NewPhotoStore(ctx context.Context, cfg config.MinioConfig, logger *slog.Logger) (*PhotoStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio connection failed: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("checking bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("creating bucket: %w", err)
		}
		logger.Info("created photo bucket", "bucket", cfg.Bucket)
	}

	return &PhotoStore{
		client:   client,
		bucket:   cfg.Bucket,
		endpoint: cfg.Endpoint,
		useSSL:   cfg.UseSSL,
	}, nil
}

// Save rejects non-image uploads, resizes the image to 800px wide and stores
// it under a fresh uuid name, returning the object URL to record on the store.
func (p *PhotoStore) Save(ctx context.Context, fileHeader *multipart.FileHeader) (string, error) {
	contentType := fileHeader.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		return "", models.ErrUploadRejected
	}

	file, err := fileHeader.Open()
	if err != nil {
		return "", fmt.Errorf("opening upload: %w", err)
	}
	defer file.Close()

	img, format, err := image.Decode(file)
	if err != nil {
		return "", models.ErrUploadRejected
	}

	resized := imaging.Resize(img, photoWidth, 0, imaging.Lanczos)

	var buf bytes.Buffer
	encodeFormat, err := imaging.FormatFromExtension(format)
	if err != nil {
		encodeFormat = imaging.JPEG
		format = "jpeg"
	}
	if err := imaging.Encode(&buf, resized, encodeFormat); err != nil {
		return "", fmt.Errorf("encoding photo: %w", err)
	}

	objectName := fmt.Sprintf("%s.%s", uuid.NewString(), format)
	_, err = p.client.PutObject(ctx, p.bucket, objectName,
		bytes.NewReader(buf.Bytes()), int64(buf.Len()),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("storing photo: %w", err)
	}
	return p.objectURL(objectName), nil
}

func (p *PhotoStore) objectURL(objectName string) string {
	scheme := "http"
	if p.useSSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s/%s", scheme, p.endpoint, p.bucket, objectName)
}
