package safe

import (
	"context"
	"io"
	"log/slog"

	"github.com/secmon-lab/compliflow/pkg/utils/logging"
)

// Close closes closer and logs a failure. A nil closer is ignored.
func Close(ctx context.Context, closer io.Closer) {
	if closer == nil {
		return
	}
	if err := closer.Close(); err != nil {
		logging.From(ctx).Error("Failed to close", slog.Any("error", err))
	}
}

// Write writes data and logs a failure. It reports whether the write succeeded so
// streaming loops can stop once the peer is gone.
func Write(ctx context.Context, w io.Writer, data ...[]byte) bool {
	if w == nil {
		return false
	}
	for _, d := range data {
		if _, err := w.Write(d); err != nil {
			logging.From(ctx).Debug("Failed to write", slog.Any("error", err))
			return false
		}
	}
	return true
}
