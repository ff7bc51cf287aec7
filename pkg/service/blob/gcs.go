package blob

import (
	"context"
	"fmt"
	"io"
	"path"

	"cloud.google.com/go/storage"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/compliflow/pkg/domain/interfaces"
)

// GCS stores attachments in a Cloud Storage bucket
type GCS struct {
	client  *storage.Client
	bucket  string
	prefix  string
	maxSize int64
}

var _ interfaces.BlobStore = (*GCS)(nil)

// GCSOption is a functional option for GCS
type GCSOption func(*GCS)

// WithPrefix places every object under prefix
func WithPrefix(prefix string) GCSOption {
	return func(g *GCS) {
		g.prefix = prefix
	}
}

// WithMaxSize overrides DefaultMaxSize
func WithMaxSize(n int64) GCSOption {
	return func(g *GCS) {
		g.maxSize = n
	}
}

// NewGCS creates a store using application default credentials
func NewGCS(ctx context.Context, bucket string, opts ...GCSOption) (*GCS, error) {
	if bucket == "" {
		return nil, goerr.New("bucket is required")
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create Cloud Storage client", goerr.V("bucket", bucket))
	}

	g := &GCS{
		client:  client,
		bucket:  bucket,
		maxSize: DefaultMaxSize,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Put uploads body and returns its gs:// URL. A failed upload leaves no object behind.
func (g *GCS) Put(ctx context.Context, key, contentType string, body io.Reader) (string, int64, error) {
	name := path.Join(g.prefix, key)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w := g.client.Bucket(g.bucket).Object(name).NewWriter(ctx)
	w.ContentType = contentType

	n, err := io.Copy(w, limit(body, g.maxSize))
	if err != nil {
		// cancelling before Close aborts the upload
		cancel()
		_ = w.Close()
		return "", 0, goerr.Wrap(err, "failed to upload object", goerr.V("bucket", g.bucket), goerr.V("object", name))
	}
	if err := w.Close(); err != nil {
		return "", 0, goerr.Wrap(err, "failed to finalize object", goerr.V("bucket", g.bucket), goerr.V("object", name))
	}

	return fmt.Sprintf("gs://%s/%s", g.bucket, name), n, nil
}

func (g *GCS) Close() error {
	return g.client.Close()
}
