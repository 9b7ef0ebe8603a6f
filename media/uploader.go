package media

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	_ "image/gif"
	_ "image/png"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/nfnt/resize"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	maxFileSize = 5 * 1024 * 1024 // 5 MB
	imageSize   = 512
	jpegQuality = 85
)

// ErrInvalidImage is returned for uploads that are not usable images.
var ErrInvalidImage = errors.New("invalid image upload")

// Uploader stores profile images in an object-store bucket. Callers
// must persist the returned URL only after Upload succeeds.
type Uploader struct {
	client   *minio.Client
	bucket   string
	endpoint string
	useSSL   bool
	logger   *zap.Logger
}

func NewUploader(client *minio.Client, bucket, endpoint string, useSSL bool, logger *zap.Logger) *Uploader {
	return &Uploader{
		client:   client,
		bucket:   bucket,
		endpoint: endpoint,
		useSSL:   useSSL,
		logger:   logger,
	}
}

// EnsureBucket creates the bucket if it does not exist. Safe to call on
// every startup.
func (u *Uploader) EnsureBucket(ctx context.Context) error {
	exists, err := u.client.BucketExists(ctx, u.bucket)
	if err != nil {
		// Some deployments answer bucket HEAD with a bare "Found".
		if err.Error() == "Found" {
			return nil
		}
		return errors.Wrap(err, "failed to check bucket existence")
	}
	if exists {
		return nil
	}

	err = u.client.MakeBucket(ctx, u.bucket, minio.MakeBucketOptions{})
	if err != nil && !strings.Contains(err.Error(), "already exists") {
		return errors.Wrap(err, "failed to create bucket")
	}

	u.logger.Info("bucket created", zap.String("bucket", u.bucket))
	return nil
}

// Upload validates, normalizes and stores a profile image, returning
// its public URL. Images are re-encoded as 512x512 JPEG so arbitrary
// upload bytes never reach the store verbatim.
func (u *Uploader) Upload(ctx context.Context, file *multipart.FileHeader) (string, error) {
	if file.Size > maxFileSize {
		return "", errors.Wrapf(ErrInvalidImage, "file size exceeds %d MB", maxFileSize/(1024*1024))
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	if ext != ".jpg" && ext != ".jpeg" && ext != ".png" {
		return "", errors.Wrap(ErrInvalidImage, "only JPG and PNG files are allowed")
	}

	src, err := file.Open()
	if err != nil {
		return "", errors.Wrap(err, "failed to open uploaded file")
	}
	defer src.Close()

	img, _, err := image.Decode(src)
	if err != nil {
		return "", errors.Wrap(ErrInvalidImage, "failed to decode image")
	}

	resized := resize.Resize(imageSize, imageSize, img, resize.Lanczos3)

	buf := new(bytes.Buffer)
	if err := jpeg.Encode(buf, resized, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return "", errors.Wrap(err, "failed to encode image")
	}

	filename := fmt.Sprintf("%s.jpg", uuid.New().String())

	uploadCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	info, err := u.client.PutObject(
		uploadCtx,
		u.bucket,
		filename,
		bytes.NewReader(buf.Bytes()),
		int64(buf.Len()),
		minio.PutObjectOptions{
			ContentType: "image/jpeg",
		},
	)
	if err != nil {
		u.logger.Error("failed to upload to object store",
			zap.Error(err),
			zap.String("bucket", u.bucket),
			zap.String("filename", filename))
		return "", errors.Wrap(err, "failed to store image")
	}

	if info.Size == 0 {
		return "", errors.New("upload completed but stored size is 0")
	}

	u.logger.Info("image uploaded",
		zap.String("bucket", u.bucket),
		zap.String("filename", filename),
		zap.Int64("size", info.Size))

	return u.objectURL(filename), nil
}

func (u *Uploader) objectURL(filename string) string {
	scheme := "http"
	if u.useSSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s/%s", scheme, u.endpoint, u.bucket, filename)
}
