package interfaces

import (
	"context"
	"io"

	"github.com/secmon-lab/compliflow/pkg/domain/model"
)

// Notifier broadcasts events to subscribers of the event's organization room
type Notifier interface {
	Publish(ctx context.Context, event model.Event)
}

// SummaryInput is the issue content a summary is generated from
type SummaryInput struct {
	Title       string
	Description string
	Category    string
	Priority    string
}

// SummaryResult always carries text and a model id. Err is set when the fallback was used.
type SummaryResult struct {
	Summary string
	Model   string
	Err     error
}

// Summarizer generates root-cause summaries. It never fails.
type Summarizer interface {
	Generate(ctx context.Context, input SummaryInput) SummaryResult
}

// BlobStore stores attachment bodies and returns a URL to fetch them
type BlobStore interface {
	Put(ctx context.Context, key, contentType string, body io.Reader) (url string, size int64, err error)
}
