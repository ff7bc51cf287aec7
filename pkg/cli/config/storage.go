package config

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/compliflow/pkg/domain/interfaces"
	"github.com/secmon-lab/compliflow/pkg/service/blob"
	"github.com/secmon-lab/compliflow/pkg/utils/logging"
	"github.com/secmon-lab/compliflow/pkg/utils/safe"
	"github.com/urfave/cli/v3"
)

// Storage configures where issue attachments are stored
type Storage struct {
	bucket  string
	prefix  string
	maxSize int64
}

func (x *Storage) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "storage-bucket",
			Usage:       "Cloud Storage bucket for issue attachments. Attachments are kept in memory when unset",
			Category:    "Storage",
			Destination: &x.bucket,
			Sources:     cli.EnvVars("COMPLIFLOW_STORAGE_BUCKET"),
		},
		&cli.StringFlag{
			Name:        "storage-prefix",
			Usage:       "Object name prefix within the bucket",
			Category:    "Storage",
			Destination: &x.prefix,
			Sources:     cli.EnvVars("COMPLIFLOW_STORAGE_PREFIX"),
		},
		&cli.Int64Flag{
			Name:        "storage-max-size",
			Usage:       "Maximum attachment size in bytes",
			Category:    "Storage",
			Value:       blob.DefaultMaxSize,
			Destination: &x.maxSize,
			Sources:     cli.EnvVars("COMPLIFLOW_STORAGE_MAX_SIZE"),
		},
	}
}

// MaxSize returns the configured attachment size limit
func (x *Storage) MaxSize() int64 {
	if x.maxSize <= 0 {
		return blob.DefaultMaxSize
	}
	return x.maxSize
}

// Configure returns the attachment store and a function releasing it
func (x *Storage) Configure(ctx context.Context) (interfaces.BlobStore, func(), error) {
	if x.bucket == "" {
		logging.From(ctx).Warn("No storage bucket configured, attachments are kept in memory")
		return blob.NewMemory(), func() {}, nil
	}

	store, err := blob.NewGCS(ctx, x.bucket, blob.WithPrefix(x.prefix), blob.WithMaxSize(x.MaxSize()))
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to initialize attachment storage")
	}
	logging.From(ctx).Info("Using Cloud Storage for attachments", "bucket", x.bucket, "prefix", x.prefix)

	return store, func() { safe.Close(ctx, store) }, nil
}
