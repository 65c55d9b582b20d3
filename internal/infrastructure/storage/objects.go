package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"

	"github.com/disintegration/imaging"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const avatarSize = 256

// ObjectStorage keeps ticket attachments and user avatars in an
// S3-compatible bucket.
type ObjectStorage struct {
	client *minio.Client
	bucket string
}

func NewObjectStorage(storeURL, accessKey, secretKey, bucket string) (*ObjectStorage, error) {
	parsedStoreURL, err := url.Parse(storeURL)
	if err != nil {
		return nil, fmt.Errorf("invalid store url: %w", err)
	}
	client, err := minio.New(parsedStoreURL.Host, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: parsedStoreURL.Scheme == "https",
	})
	if err != nil {
		return nil, fmt.Errorf("minio: %w", err)
	}
	return &ObjectStorage{client: client, bucket: bucket}, nil
}

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Key         string
	Size        int64
	ContentType string
}

func (s *ObjectStorage) Save(ctx context.Context, key string, r io.Reader, size int64, contentType string) (ObjectInfo, error) {
	info, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return ObjectInfo{}, err
	}
	return ObjectInfo{Key: info.Key, Size: info.Size, ContentType: contentType}, nil
}

func (s *ObjectStorage) Open(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, ObjectInfo{}, err
	}
	stat, err := obj.Stat()
	if err != nil {
		obj.Close()
		return nil, ObjectInfo{}, err
	}
	return obj, ObjectInfo{Key: key, Size: stat.Size, ContentType: stat.ContentType}, nil
}

func (s *ObjectStorage) Delete(ctx context.Context, key string) error {
	return s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
}

// SaveAvatar decodes the uploaded image, scales it down to a square
// thumbnail and stores it as JPEG under avatars/<username>.jpg.
func (s *ObjectStorage) SaveAvatar(ctx context.Context, username string, r io.Reader) (string, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("decoding avatar image: %w", err)
	}
	thumbnail := imaging.Fill(img, avatarSize, avatarSize, imaging.Center, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumbnail, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		return "", fmt.Errorf("encoding avatar image: %w", err)
	}
	key := fmt.Sprintf("avatars/%s.jpg", username)
	_, err = s.client.PutObject(ctx, s.bucket, key, &buf, int64(buf.Len()), minio.PutObjectOptions{
		ContentType: "image/jpeg",
	})
	if err != nil {
		return "", err
	}
	return key, nil
}

func (s *ObjectStorage) AvatarKey(username string) string {
	return fmt.Sprintf("avatars/%s.jpg", username)
}
