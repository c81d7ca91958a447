// Package gcsstore publishes a completed import run's output directory
// (the *.dat files an orchestrator run produces) to a GCS bucket, for
// deployments that serve the rendering/routing engine straight out of
// object storage instead of local disk. Adapted from a bucket-service
// helper, narrowed from an avatar/material two-bucket split down to
// the single output bucket this pipeline needs.
package gcsstore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/osmscout-go/mapimport/internal/platform/gcp"
	"github.com/osmscout-go/mapimport/internal/platform/logger"
)

type Store interface {
	UploadFile(ctx context.Context, key string, file io.Reader) error
	UploadDir(ctx context.Context, localDir, keyPrefix string) (int, error)
	DownloadFile(ctx context.Context, key string) (io.ReadCloser, error)
	ListKeys(ctx context.Context, prefix string) ([]string, error)
	ObjectURL(key string) string
}

type store struct {
	log           *logger.Logger
	client        *storage.Client
	bucket        string
	publicBaseURL string
}

// NewFromEnv returns nil, nil when MAPIMPORT_GCS_BUCKET is unset, so
// publishing to object storage is opt-in: a local-disk-only run doesn't
// need GCS credentials configured at all.
func NewFromEnv(log *logger.Logger) (Store, error) {
	bucket := strings.TrimSpace(os.Getenv("MAPIMPORT_GCS_BUCKET"))
	if bucket == "" {
		return nil, nil
	}
	storageCfg, err := gcp.ResolveObjectStorageConfigFromEnv()
	if err != nil {
		return nil, fmt.Errorf("resolve object storage config: %w", err)
	}

	ctx := context.Background()
	client, err := newStorageClient(ctx, storageCfg)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}

	s := &store{
		log:           log.With("service", "GCSStore"),
		client:        client,
		bucket:        bucket,
		publicBaseURL: strings.TrimRight(strings.TrimSpace(os.Getenv("MAPIMPORT_GCS_PUBLIC_BASE_URL")), "/"),
	}
	s.log.Info("Object storage output enabled", "bucket", bucket, "mode", storageCfg.Mode)
	return s, nil
}

func newStorageClient(ctx context.Context, cfg gcp.ObjectStorageConfig) (*storage.Client, error) {
	switch cfg.Mode {
	case gcp.ObjectStorageModeGCS:
		opts := gcp.ClientOptionsFromEnv()
		opts = append(opts, option.WithScopes(storage.ScopeReadWrite))
		return storage.NewClient(ctx, opts...)
	case gcp.ObjectStorageModeGCSEmulator:
		endpoint := strings.TrimRight(strings.TrimSpace(cfg.EmulatorHost), "/")
		_ = os.Setenv("STORAGE_EMULATOR_HOST", endpoint)
		return storage.NewClient(ctx, option.WithoutAuthentication())
	default:
		return nil, &gcp.ObjectStorageConfigError{Code: gcp.ObjectStorageConfigErrorInvalidMode, Mode: string(cfg.Mode)}
	}
}

func (s *store) UploadFile(ctx context.Context, key string, file io.Reader) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	w := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	if _, err := io.Copy(w, file); err != nil {
		_ = w.Close()
		return fmt.Errorf("write %q to gcs: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close gcs writer for %q: %w", key, err)
	}
	return nil
}

// UploadDir walks localDir and uploads every regular file under it,
// joining keyPrefix with the file's path relative to localDir. It
// returns the number of files uploaded.
func (s *store) UploadDir(ctx context.Context, localDir, keyPrefix string) (int, error) {
	n := 0
	err := filepath.WalkDir(localDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(localDir, path)
		if err != nil {
			return err
		}
		key := strings.TrimLeft(keyPrefix+"/"+filepath.ToSlash(rel), "/")
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		if err := s.UploadFile(ctx, key, f); err != nil {
			return err
		}
		n++
		return nil
	})
	return n, err
}

func (s *store) DownloadFile(ctx context.Context, key string) (io.ReadCloser, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	r, err := s.client.Bucket(s.bucket).Object(key).NewReader(ctx)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("open gcs reader for %q: %w", key, err)
	}
	return &readCloserWithCancel{ReadCloser: r, cancel: cancel}, nil
}

func (s *store) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	it := s.client.Bucket(s.bucket).Objects(ctx, &storage.Query{Prefix: prefix})
	out := []string{}
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		out = append(out, attrs.Name)
	}
	return out, nil
}

func (s *store) ObjectURL(key string) string {
	key = strings.TrimLeft(strings.TrimSpace(key), "/")
	if s.publicBaseURL != "" {
		return fmt.Sprintf("%s/%s/%s", s.publicBaseURL, s.bucket, key)
	}
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", s.bucket, key)
}

// readCloserWithCancel attaches the reader's context cancel to Close so
// the download context stays live for the life of the reader.
type readCloserWithCancel struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (r *readCloserWithCancel) Close() error {
	err := r.ReadCloser.Close()
	if r.cancel != nil {
		r.cancel()
	}
	return err
}
