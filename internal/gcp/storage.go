package gcp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
)

// DownloadConcurrency bounds parallel object transfers.
const DownloadConcurrency = 10

// GetEnv is a helper to read an environment variable or return a default value.
func GetEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// UploadWithRetry uploads content, retrying with exponential backoff. With
// createOnly set the object is written only if it does not exist yet; finding it
// already there is not an error.
func UploadWithRetry(ctx context.Context, bucket *storage.BucketHandle, objectName string, content []byte, createOnly bool) error {
	const maxRetries = 4
	var backoff = 1 * time.Second
	var lastErr error

	for i := 0; i < maxRetries; i++ {
		err := func() error {
			writeCtx, cancel := context.WithTimeout(ctx, time.Second*50)
			defer cancel()

			obj := bucket.Object(objectName)
			if createOnly {
				obj = obj.If(storage.Conditions{DoesNotExist: true})
			}
			gcsWriter := obj.NewWriter(writeCtx)
			if _, err := io.Copy(gcsWriter, bytes.NewReader(content)); err != nil {
				_ = gcsWriter.Close()
				return fmt.Errorf("io.Copy to GCS failed: %w", err)
			}
			if err := gcsWriter.Close(); err != nil {
				return fmt.Errorf("failed to close GCS writer (finalize upload): %w", err)
			}
			return nil
		}()
		if err == nil {
			return nil
		}
		if createOnly && isPreconditionFailed(err) {
			slog.Info("Object already exists, skipping.", "gcsObject", objectName)
			return nil
		}

		lastErr = err
		slog.Warn(
			"Upload failed, will retry.",
			"gcsObject", objectName,
			"attempt", i+1,
			"maxRetries", maxRetries,
			"backoff", backoff.String(),
			"error", err,
		)

		select {
		case <-time.After(backoff):
			backoff *= 2
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fmt.Errorf("upload for %s failed after all retries: %w", objectName, lastErr)
}

func isPreconditionFailed(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusPreconditionFailed
}

// DownloadObject streams one object to destPath.
func DownloadObject(ctx context.Context, bucket *storage.BucketHandle, object, destPath string) error {
	gcsReader, err := bucket.Object(object).NewReader(ctx)
	if err != nil {
		return fmt.Errorf("failed to get GCS object reader for %s: %w", object, err)
	}
	defer gcsReader.Close()

	if err := writeLocalFile(destPath, gcsReader); err != nil {
		return fmt.Errorf("failed to copy GCS object %s to local file: %w", object, err)
	}
	return nil
}

// writeLocalFile copies r into destPath, creating parent directories. A failed
// copy or close removes the partial file.
func writeLocalFile(destPath string, r io.Reader) (err error) {
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(destPath), err)
	}
	localFile, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("failed to create local file at %s: %w", destPath, err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(destPath)
		}
	}()

	if _, err := io.Copy(localFile, r); err != nil {
		_ = localFile.Close()
		return err
	}
	if err := localFile.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", destPath, err)
	}
	return nil
}

// DownloadPrefix mirrors every object under prefix into destDir, keeping the
// object path below prefix. Objects whose names fail keep return false are skipped.
// It returns the number of files written.
func DownloadPrefix(ctx context.Context, bucket *storage.BucketHandle, prefix, destDir string, keep func(name string) bool) (int, error) {
	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(DownloadConcurrency)

	count := 0
	it := bucket.Objects(ctx, &storage.Query{Prefix: prefix})
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			_ = eg.Wait()
			return 0, fmt.Errorf("failed to list objects under %s: %w", prefix, err)
		}

		rel := strings.TrimPrefix(attrs.Name, prefix)
		if rel == "" || strings.HasSuffix(rel, "/") || (keep != nil && !keep(rel)) {
			continue
		}
		dest := filepath.Join(destDir, filepath.FromSlash(rel))
		if !strings.HasPrefix(dest, filepath.Clean(destDir)+string(filepath.Separator)) {
			continue
		}

		name := attrs.Name
		count++
		eg.Go(func() error {
			return DownloadObject(gctx, bucket, name, dest)
		})
	}
	if err := eg.Wait(); err != nil {
		return 0, err
	}
	return count, nil
}
