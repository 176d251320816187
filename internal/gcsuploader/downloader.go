package gcsuploader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/wechat-ledger/internal/logger"
)

// IsURI reports whether s is a gs:// URI.
func IsURI(s string) bool {
	return strings.HasPrefix(s, "gs://")
}

// ParseURI splits gs://bucket/object into its bucket and object parts.
// The object part may be empty for a bare bucket URI.
func ParseURI(uri string) (bucket, object string, err error) {
	if !IsURI(uri) {
		return "", "", fmt.Errorf("invalid GCS URI: %s", uri)
	}
	trimmed := strings.TrimPrefix(uri, "gs://")
	bucket, object, _ = strings.Cut(trimmed, "/")
	if bucket == "" {
		return "", "", fmt.Errorf("invalid GCS URI (no bucket): %s", uri)
	}
	return bucket, object, nil
}

// DownloadPrefix copies every object directly under the URI's prefix into
// dir, named by the object's base name. Nested objects are skipped. It
// returns the local paths written.
func DownloadPrefix(ctx context.Context, uri, dir string) ([]string, error) {
	bucketName, prefix, err := ParseURI(uri)
	if err != nil {
		return nil, err
	}
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create download dir: %w", err)
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	defer client.Close()

	bkt := client.Bucket(bucketName)
	it := bkt.Objects(ctx, &storage.Query{Prefix: prefix, Delimiter: "/"})

	var paths []string
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list gs://%s/%s: %w", bucketName, prefix, err)
		}
		local, ok := LocalName(prefix, attrs.Name)
		if !ok {
			continue
		}
		dst := filepath.Join(dir, local)
		if err := downloadObject(ctx, bkt.Object(attrs.Name), dst); err != nil {
			return nil, err
		}
		paths = append(paths, dst)
	}

	log := logger.FromContext(ctx)
	log.Info().
		Str("uri", uri).
		Int("files", len(paths)).
		Msg("Downloaded input pages")
	return paths, nil
}

// LocalName maps an object listed under prefix to a file name. Synthetic
// directory entries and nested objects are rejected.
func LocalName(prefix, object string) (string, bool) {
	rel, ok := strings.CutPrefix(object, prefix)
	if !ok || rel == "" || strings.Contains(rel, "/") {
		return "", false
	}
	return path.Base(rel), true
}

func downloadObject(ctx context.Context, obj *storage.ObjectHandle, dst string) error {
	r, err := obj.NewReader(ctx)
	if err != nil {
		return fmt.Errorf("open GCS object reader: %w", err)
	}
	defer r.Close()

	f, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return fmt.Errorf("read GCS object: %w", err)
	}
	return f.Close()
}
