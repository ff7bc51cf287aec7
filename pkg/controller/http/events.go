package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/compliflow/pkg/utils/safe"
)

// eventsHandler streams the caller's organization room as Server-Sent Events. The
// event field carries the event name and data the JSON encoded event.
func (s *Server) eventsHandler(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, r, goerr.New("streaming unsupported"))
		return
	}

	ctx := r.Context()
	actor := actorOf(r)
	ch := s.hub.Subscribe(ctx, actor.OrganizationID)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if !safe.Write(ctx, w, []byte(": stream started\n\n")) {
		return
	}
	flusher.Flush()

	heartbeat := time.NewTicker(s.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case ev, open := <-ch:
			if !open {
				return
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			if !safe.Write(ctx, w, []byte("event: "+string(ev.Name)+"\n"), []byte("data: "), payload, []byte("\n\n")) {
				return
			}
			flusher.Flush()

		case <-heartbeat.C:
			if !safe.Write(ctx, w, []byte(": ping\n\n")) {
				return
			}
			flusher.Flush()

		case <-ctx.Done():
			return
		}
	}
}
