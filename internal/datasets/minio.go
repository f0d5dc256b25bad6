package datasets

import (
	"context"
	"fmt"
	"net/http"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/minio/minio-go/v7"
)

const (
	metaHash        = "data-hash"
	metaDescription = "description"
)

// objectAPI is the subset of *minio.Client the registry uses.
type objectAPI interface {
	ListObjects(ctx context.Context, bucket string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo
	StatObject(ctx context.Context, bucket, object string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
	FPutObject(ctx context.Context, bucket, object, filePath string, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// MinioRegistry keeps dataset files at <name>/<version>/<file> with the
// content hash and description as user metadata.
type MinioRegistry struct {
	client objectAPI
	bucket string
}

func NewMinioRegistry(client *minio.Client, bucket string) (*MinioRegistry, error) {
	if client == nil {
		return nil, fmt.Errorf("minio client is required")
	}
	return newMinioRegistry(client, bucket)
}

func newMinioRegistry(client objectAPI, bucket string) (*MinioRegistry, error) {
	if strings.TrimSpace(bucket) == "" {
		return nil, fmt.Errorf("datasets bucket is required")
	}
	return &MinioRegistry{client: client, bucket: bucket}, nil
}

func (r *MinioRegistry) Latest(ctx context.Context, name string) (Version, error) {
	best := -1
	var bestKey string
	for obj := range r.client.ListObjects(ctx, r.bucket, minio.ListObjectsOptions{Prefix: name + "/", Recursive: true}) {
		if obj.Err != nil {
			return Version{}, fmt.Errorf("list dataset %s: %w", name, obj.Err)
		}
		version, ok := versionOf(name, obj.Key)
		if !ok {
			continue
		}
		if n, err := strconv.Atoi(version); err == nil && n > best {
			best = n
			bestKey = obj.Key
		}
	}
	if best < 0 {
		return Version{}, ErrNotFound
	}
	return r.stat(ctx, name, strconv.Itoa(best), bestKey)
}

func (r *MinioRegistry) Get(ctx context.Context, name, version string) (Version, error) {
	listCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	prefix := name + "/" + version + "/"
	for obj := range r.client.ListObjects(listCtx, r.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return Version{}, fmt.Errorf("list dataset %s: %w", name, obj.Err)
		}
		return r.stat(ctx, name, version, obj.Key)
	}
	return Version{}, ErrNotFound
}

func (r *MinioRegistry) Upload(ctx context.Context, v Version, filePath string) (Version, error) {
	object := path.Join(v.Name, v.Version, filepath.Base(filePath))
	opts := minio.PutObjectOptions{
		ContentType: contentType(filePath),
		UserMetadata: map[string]string{
			metaHash:        v.Hash,
			metaDescription: v.Description,
		},
	}
	if _, err := r.client.FPutObject(ctx, r.bucket, object, filePath, opts); err != nil {
		return Version{}, fmt.Errorf("upload dataset %s: %w", v.Name, err)
	}
	v.Object = object
	return v, nil
}

func (r *MinioRegistry) stat(ctx context.Context, name, version, key string) (Version, error) {
	info, err := r.client.StatObject(ctx, r.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).StatusCode == http.StatusNotFound {
			return Version{}, ErrNotFound
		}
		return Version{}, fmt.Errorf("stat dataset %s: %w", key, err)
	}
	return Version{
		Name:        name,
		Version:     version,
		Hash:        userMeta(info.UserMetadata, metaHash),
		Description: userMeta(info.UserMetadata, metaDescription),
		Object:      key,
	}, nil
}

// userMeta looks key up case-insensitively; S3 returns canonical header
// casing.
func userMeta(meta map[string]string, key string) string {
	for k, v := range meta {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}

func versionOf(name, key string) (string, bool) {
	rest, ok := strings.CutPrefix(key, name+"/")
	if !ok {
		return "", false
	}
	version, _, ok := strings.Cut(rest, "/")
	return version, ok && version != ""
}

func contentType(filePath string) string {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".jsonl":
		return "application/jsonl"
	case ".json":
		return "application/json"
	case ".csv":
		return "text/csv"
	default:
		return "application/octet-stream"
	}
}
