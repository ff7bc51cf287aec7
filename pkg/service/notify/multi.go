package notify

import (
	"context"

	"github.com/secmon-lab/compliflow/pkg/domain/interfaces"
	"github.com/secmon-lab/compliflow/pkg/domain/model"
)

// Multi publishes every event to each of its notifiers in order. Nil entries are skipped.
type Multi []interfaces.Notifier

var _ interfaces.Notifier = Multi(nil)

func (m Multi) Publish(ctx context.Context, ev model.Event) {
	for _, n := range m {
		if n != nil {
			n.Publish(ctx, ev)
		}
	}
}
