// Package storage reads tracks from MinIO / S3 compatible object storage.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"SonicPlayer/config"
	"SonicPlayer/core/download"
	"SonicPlayer/logger"
)

var ErrBucketMissing = errors.New("bucket does not exist")

// BucketStats 存储桶统计信息
type BucketStats struct {
	TotalObjects int64     `json:"totalObjects"`
	TotalSize    int64     `json:"totalSize"`
	LastModified time.Time `json:"lastModified"`
}

// ObjectInfo 文件信息
type ObjectInfo struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"lastModified"`
	ContentType  string    `json:"contentType"`
	ETag         string    `json:"etag"`
}

// Store 封装 MinIO 客户端
type Store struct {
	client *minio.Client
	bucket string
}

// NewStore 创建 MinIO 存储
func NewStore(cfg *config.Config) (*Store, error) {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
		Region: cfg.MinioRegion,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return &Store{client: client, bucket: cfg.MinioBucket}, nil
}

// Bucket is the default bucket for keys without one.
func (s *Store) Bucket() string {
	return s.bucket
}

// Ping checks connectivity and that the default bucket exists.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrBucketMissing, s.bucket)
	}
	return nil
}

// FetchObject streams bucket/key into w, reporting progress against the object size.
func (s *Store) FetchObject(ctx context.Context, bucket, key string, w io.Writer, progress func(float64)) error {
	if bucket == "" {
		bucket = s.bucket
	}
	info, err := s.client.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return fmt.Errorf("stat object %s/%s: %w", bucket, key, err)
	}

	obj, err := s.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return fmt.Errorf("get object %s/%s: %w", bucket, key, err)
	}
	defer obj.Close()

	pw := download.NewProgressWriter(w, info.Size, progress)
	if _, err := io.Copy(pw, obj); err != nil {
		return fmt.Errorf("read object %s/%s: %w", bucket, key, err)
	}
	pw.Done()

	logger.Debug("object fetched",
		logger.String("bucket", bucket),
		logger.String("key", key),
		logger.Int64("size", pw.Written()))
	return nil
}

// Stat returns object metadata.
func (s *Store) Stat(ctx context.Context, bucket, key string) (ObjectInfo, error) {
	if bucket == "" {
		bucket = s.bucket
	}
	info, err := s.client.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("stat object %s/%s: %w", bucket, key, err)
	}
	return toObjectInfo(info), nil
}

// List returns the audio objects under prefix in the default bucket.
func (s *Store) List(ctx context.Context, prefix string, recursive bool) ([]ObjectInfo, *BucketStats, error) {
	stats := &BucketStats{}
	var objects []ObjectInfo

	objectCh := s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: recursive,
	})
	for object := range objectCh {
		if object.Err != nil {
			return nil, nil, fmt.Errorf("list objects: %w", object.Err)
		}
		if strings.HasSuffix(object.Key, "/") || !IsAudio(object.Key) {
			continue
		}
		stats.TotalObjects++
		stats.TotalSize += object.Size
		if object.LastModified.After(stats.LastModified) {
			stats.LastModified = object.LastModified
		}
		objects = append(objects, toObjectInfo(object))
	}
	return objects, stats, nil
}

// Upload puts a local audio file at key in the default bucket.
func (s *Store) Upload(ctx context.Context, key, filePath string) (ObjectInfo, error) {
	info, err := s.client.FPutObject(ctx, s.bucket, key, filePath, minio.PutObjectOptions{
		ContentType: ContentType(filePath),
	})
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("upload %s: %w", filePath, err)
	}
	logger.Info("track uploaded",
		logger.String("bucket", s.bucket),
		logger.String("key", key),
		logger.Int64("size", info.Size))
	return ObjectInfo{Key: info.Key, Size: info.Size, ETag: info.ETag, LastModified: info.LastModified}, nil
}

func toObjectInfo(o minio.ObjectInfo) ObjectInfo {
	return ObjectInfo{
		Key:          o.Key,
		Size:         o.Size,
		LastModified: o.LastModified,
		ContentType:  o.ContentType,
		ETag:         o.ETag,
	}
}

// IsAudio reports whether the key has a playable extension.
func IsAudio(key string) bool {
	switch strings.ToLower(path.Ext(key)) {
	case ".mp3", ".wav", ".flac", ".ogg", ".oga":
		return true
	}
	return false
}

// ContentType 从文件名推断内容类型
func ContentType(name string) string {
	switch strings.ToLower(path.Ext(name)) {
	case ".mp3":
		return "audio/mpeg"
	case ".wav":
		return "audio/wav"
	case ".flac":
		return "audio/flac"
	case ".ogg", ".oga":
		return "audio/ogg"
	default:
		return "application/octet-stream"
	}
}

// FormatSize 格式化文件大小
func FormatSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}
