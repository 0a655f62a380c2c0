// Package export writes audit events to object storage as newline-delimited JSON.
package export

import (
	"bufio"
	"context"
	"encoding/json"
	"log/slog"

	"warden/config"
	"warden/internal/domain/entity"
	"warden/internal/domain/service"

	"github.com/pkg/errors"
	"go.uber.org/fx"
	"gocloud.dev/blob"

	// Registered URL schemes: file://, gs://, s3://, mem://.
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/memblob"
	_ "gocloud.dev/blob/s3blob"
)

const contentType = "application/x-ndjson"

type blobExporter struct {
	bucket *blob.Bucket
}

// Params defines the required parameters
type Params struct {
	fx.In
	fx.Lifecycle

	Ctx    context.Context
	Config *config.Config
	Logger *slog.Logger
}

// NewAuditExporter returns a nil exporter when audit.exportBucketURL is empty.
func NewAuditExporter(params Params) (service.AuditExporter, error) {
	url := ""
	if params.Config.Audit != nil {
		url = params.Config.Audit.ExportBucketURL
	}
	if url == "" {
		params.Logger.Info("Audit export bucket not configured, export disabled")

		return nil, nil
	}

	bucket, err := blob.OpenBucket(params.Ctx, url)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open audit export bucket")
	}

	params.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			return bucket.Close()
		},
	})

	return NewBlobExporter(bucket), nil
}

// NewBlobExporter writes into an already opened bucket. The caller owns the bucket.
func NewBlobExporter(bucket *blob.Bucket) service.AuditExporter {
	return &blobExporter{bucket: bucket}
}

func (e *blobExporter) Export(ctx context.Context, key string, events []*entity.AuditEvent) (string, error) {
	// A cancelled ctx aborts the writer and discards the partial object.
	wctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w, err := e.bucket.NewWriter(wctx, key, &blob.WriterOptions{ContentType: contentType})
	if err != nil {
		return "", errors.Wrapf(err, "failed to open export object %s", key)
	}

	buf := bufio.NewWriter(w)
	enc := json.NewEncoder(buf)
	for _, event := range events {
		if err := enc.Encode(event); err != nil {
			cancel()
			_ = w.Close()

			return "", errors.Wrapf(err, "failed to encode audit event %s", event.ID)
		}
	}

	if err := buf.Flush(); err != nil {
		cancel()
		_ = w.Close()

		return "", errors.Wrap(err, "failed to flush export object")
	}

	if err := w.Close(); err != nil {
		return "", errors.Wrapf(err, "failed to finalize export object %s", key)
	}

	return key, nil
}
