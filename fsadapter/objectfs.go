package fsadapter

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/relex/gotils/logger"
)

const objectOpTimeout = 30 * time.Second

// objectFS is the S3-compatible backend; file paths map to object keys
//
// Objects cannot be appended to, so a writer accumulates data in memory and uploads
// on Sync and Close. File stores already write whole batches and rotate periodically,
// which keeps the buffered window small.
type objectFS struct {
	logger logger.Logger
	client *minio.Client
	bucket string
}

func newObjectFS(parentLogger logger.Logger, options Options) (FileSystem, error) {
	if options.Endpoint == "" {
		return nil, fmt.Errorf("fs_endpoint is required for fs_type 's3'")
	}
	if options.Bucket == "" {
		return nil, fmt.Errorf("fs_bucket is required for fs_type 's3'")
	}
	client, err := minio.New(options.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(os.Getenv("S3_ACCESS_KEY"), os.Getenv("S3_SECRET_KEY"), ""),
		Secure: options.Secure,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create s3 client: %w", err)
	}
	return &objectFS{
		logger: parentLogger.WithField("fs", "s3"),
		client: client,
		bucket: options.Bucket,
	}, nil
}

func (fs *objectFS) OpenWriter(path string) (FileWriter, error) {
	existing, err := fs.ReadAll(path)
	if err != nil {
		existing = nil
	}
	return &objectWriter{fs: fs, key: objectKey(path), buffer: bytes.NewBuffer(existing)}, nil
}

func (fs *objectFS) ReadAll(path string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), objectOpTimeout)
	defer cancel()
	object, err := fs.client.GetObject(ctx, fs.bucket, objectKey(path), minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer object.Close()
	return io.ReadAll(object)
}

func (fs *objectFS) List(dir string) ([]string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), objectOpTimeout)
	defer cancel()
	prefix := objectKey(dir)
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	names := make([]string, 0, 100)
	for info := range fs.client.ListObjects(ctx, fs.bucket, minio.ListObjectsOptions{Prefix: prefix}) {
		if info.Err != nil {
			return nil, info.Err
		}
		names = append(names, strings.TrimPrefix(info.Key, prefix))
	}
	return names, nil
}

func (fs *objectFS) Remove(path string) error {
	ctx, cancel := context.WithTimeout(context.Background(), objectOpTimeout)
	defer cancel()
	return fs.client.RemoveObject(ctx, fs.bucket, objectKey(path), minio.RemoveObjectOptions{})
}

func (fs *objectFS) FileSize(path string) (int64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), objectOpTimeout)
	defer cancel()
	info, err := fs.client.StatObject(ctx, fs.bucket, objectKey(path), minio.StatObjectOptions{})
	if err != nil {
		return 0, err
	}
	return info.Size, nil
}

func (fs *objectFS) WriteAll(path string, data []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), objectOpTimeout)
	defer cancel()
	_, err := fs.client.PutObject(ctx, fs.bucket, objectKey(path), bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/octet-stream"})
	return err
}

// Symlink is not supported by object stores; the current-file marker is skipped
func (fs *objectFS) Symlink(string, string) error {
	return nil
}

// MkdirAll is a no-op: object stores have no directories
func (fs *objectFS) MkdirAll(string) error {
	return nil
}

func objectKey(path string) string {
	return strings.TrimPrefix(path, "/")
}

type objectWriter struct {
	fs     *objectFS
	key    string
	buffer *bytes.Buffer
}

func (w *objectWriter) Write(data []byte) (int, error) {
	return w.buffer.Write(data)
}

func (w *objectWriter) Sync() error {
	ctx, cancel := context.WithTimeout(context.Background(), objectOpTimeout)
	defer cancel()
	data := w.buffer.Bytes()
	_, err := w.fs.client.PutObject(ctx, w.fs.bucket, w.key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/octet-stream"})
	return err
}

func (w *objectWriter) Size() (int64, error) {
	return int64(w.buffer.Len()), nil
}

func (w *objectWriter) Close() error {
	return w.Sync()
}
