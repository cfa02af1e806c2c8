package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/TimurManjosov/playmate/internal/telemetry"
)

// handleStream pushes toasts and card refreshes as server-sent events.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		InternalError(w, r, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	ch, unsubscribe := s.hub.Subscribe(16)
	defer unsubscribe()
	telemetry.NotificationClients.Inc()
	defer telemetry.NotificationClients.Dec()

	hello, _ := json.Marshal(map[string]string{"theme": s.data.State().Settings().Theme})
	fmt.Fprintf(w, "event: init\ndata: %s\n\n", hello)
	flusher.Flush()

	ping := time.NewTicker(s.pingEvery)
	defer ping.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ping.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case n, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(n)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", n.ID, n.Kind, data)
			flusher.Flush()
		}
	}
}
