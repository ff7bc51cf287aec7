package notify

import (
	"context"
	"sync"

	"github.com/secmon-lab/compliflow/pkg/domain/interfaces"
	"github.com/secmon-lab/compliflow/pkg/domain/model"
	"github.com/secmon-lab/compliflow/pkg/utils/logging"
	"github.com/secmon-lab/compliflow/pkg/utils/metrics"
)

// DefaultSubscriberBuffer is the number of events queued per subscriber before drops
const DefaultSubscriberBuffer = 32

// Hub fans events out to the subscribers of each organization's room. Publishing
// never blocks: a subscriber whose buffer is full misses the event.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[string]map[int]chan model.Event
	next   int
	buffer int
}

var _ interfaces.Notifier = (*Hub)(nil)

// HubOption is a functional option for Hub
type HubOption func(*Hub)

// WithSubscriberBuffer overrides DefaultSubscriberBuffer
func WithSubscriberBuffer(n int) HubOption {
	return func(h *Hub) {
		h.buffer = n
	}
}

func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		rooms:  make(map[string]map[int]chan model.Event),
		buffer: DefaultSubscriberBuffer,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Subscribe joins the organization's room. The channel is closed when ctx ends.
func (h *Hub) Subscribe(ctx context.Context, orgID model.OrganizationID) <-chan model.Event {
	ch := make(chan model.Event, h.buffer)
	room := model.RoomKey(orgID)

	h.mu.Lock()
	id := h.next
	h.next++
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[int]chan model.Event)
	}
	h.rooms[room][id] = ch
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.mu.Lock()
		delete(h.rooms[room], id)
		if len(h.rooms[room]) == 0 {
			delete(h.rooms, room)
		}
		close(ch)
		h.mu.Unlock()
	}()

	return ch
}

// Publish delivers ev to every subscriber of its room
func (h *Hub) Publish(ctx context.Context, ev model.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, ch := range h.rooms[ev.RoomKey()] {
		select {
		case ch <- ev:
		default:
			metrics.NotificationsDropped.Inc()
			logging.From(ctx).Debug("dropped event for slow subscriber",
				"event", ev.Name,
				"room", ev.RoomKey())
		}
	}
}

// Subscribers returns the number of open subscriptions of an organization
func (h *Hub) Subscribers(orgID model.OrganizationID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[model.RoomKey(orgID)])
}
