// Package covers stores game cover images in a blob bucket.
//
// The bucket is addressed by a gocloud.dev URL: file:///var/lib/gamelog/covers
// for local disk, mem:// for tests, s3://bucket?region=... for object storage.
package covers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"strings"

	"github.com/google/uuid"
	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/memblob"
	_ "gocloud.dev/blob/s3blob"
	"gocloud.dev/gcerrors"
)

// ErrNotFound is returned when no cover is stored under a key.
var ErrNotFound = errors.New("cover not found")

// prefix groups cover objects inside a shared bucket.
const prefix = "covers/"

// Bucket is a cover image store backed by a gocloud blob bucket.
type Bucket struct {
	bk *blob.Bucket
}

// Open opens the bucket at rawURL. For file:// URLs the directory is
// created if missing.
func Open(ctx context.Context, rawURL string) (*Bucket, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing cover bucket url: %w", err)
	}
	if u.Scheme == "file" {
		if err := os.MkdirAll(u.Path, 0o755); err != nil {
			return nil, fmt.Errorf("creating cover directory: %w", err)
		}
	}

	bk, err := blob.OpenBucket(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("opening cover bucket: %w", err)
	}
	return &Bucket{bk: bk}, nil
}

// Put stores the image under a fresh key and returns the key.
func (b *Bucket) Put(ctx context.Context, data []byte, mime string) (string, error) {
	key := prefix + uuid.NewString() + extension(mime)
	if err := b.bk.WriteAll(ctx, key, data, &blob.WriterOptions{ContentType: mime}); err != nil {
		return "", fmt.Errorf("writing cover: %w", err)
	}
	return key, nil
}

// Get returns the image bytes and content type stored under key.
func (b *Bucket) Get(ctx context.Context, key string) ([]byte, string, error) {
	if !validKey(key) {
		return nil, "", ErrNotFound
	}

	r, err := b.bk.NewReader(ctx, key, nil)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, "", ErrNotFound
		}
		return nil, "", fmt.Errorf("opening cover: %w", err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, "", fmt.Errorf("reading cover: %w", err)
	}
	return data, r.ContentType(), nil
}

// Delete removes the object under key. Missing objects are not an error.
func (b *Bucket) Delete(ctx context.Context, key string) error {
	if !validKey(key) {
		return nil
	}
	if err := b.bk.Delete(ctx, key); err != nil && gcerrors.Code(err) != gcerrors.NotFound {
		return fmt.Errorf("deleting cover: %w", err)
	}
	return nil
}

// Close releases the bucket.
func (b *Bucket) Close() error {
	return b.bk.Close()
}

// validKey rejects keys that were not produced by Put.
func validKey(key string) bool {
	return strings.HasPrefix(key, prefix) && path.Clean(key) == key && !strings.Contains(key, "..")
}

func extension(mime string) string {
	switch mime {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	}
	return ""
}
