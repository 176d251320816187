package gcsuploader

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"cloud.google.com/go/storage"

	"github.com/dvloznov/wechat-ledger/internal/logger"
)

// UploadDir uploads every regular file under dir to bucket, keyed by
// prefix plus the file's path relative to dir. It returns the object names
// written, in walk order.
func UploadDir(ctx context.Context, bucketName, prefix, dir string) ([]string, error) {
	files, err := listFiles(dir)
	if err != nil {
		return nil, err
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	defer client.Close()

	bkt := client.Bucket(bucketName)
	log := logger.FromContext(ctx)

	var objects []string
	for _, rel := range files {
		name := ObjectName(prefix, rel)
		if err := uploadFile(ctx, bkt, name, filepath.Join(dir, rel)); err != nil {
			return objects, err
		}
		log.Debug().Str("bucket", bucketName).Str("object", name).Msg("Uploaded artifact")
		objects = append(objects, name)
	}
	return objects, nil
}

func uploadFile(ctx context.Context, bkt *storage.BucketHandle, objectName, filePath string) error {
	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("open file %q: %w", filePath, err)
	}
	defer f.Close()

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := bkt.Object(objectName).NewWriter(ctx)
	if _, err := io.Copy(w, f); err != nil {
		_ = w.Close()
		return fmt.Errorf("copy file to GCS writer: %w", err)
	}

	// Close to finalize the upload
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize upload: %w", err)
	}
	return nil
}

// listFiles returns the slash-separated relative paths of regular files under dir.
func listFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}
	return files, nil
}

// ObjectName joins a prefix and a relative path into an object name.
func ObjectName(prefix, rel string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return rel
	}
	return path.Join(prefix, rel)
}
