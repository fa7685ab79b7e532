package gateway

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/hashrelay/hashrelay/internal/core/domain"
	"github.com/hashrelay/hashrelay/internal/core/services"
)

// handleSubmissionSSE streams submission lifecycle events in real time.
// The stream ends when the submission reaches a terminal event or the
// client disconnects.
func (s *Server) handleSubmissionSSE(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		http.Error(w, "missing submission id", http.StatusBadRequest)
		return
	}
	if _, err := s.dispatcher.Get(domain.SubmissionID(id)); err != nil {
		http.Error(w, "submission not found", http.StatusNotFound)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch, unsub := s.eventBus.Subscribe(id)
	defer unsub()

	// A subscriber arriving after the terminal event was published would
	// otherwise wait forever: replay the snapshot and end the stream.
	if sub, err := s.dispatcher.Get(domain.SubmissionID(id)); err == nil {
		if sub.Status == domain.SubmissionDone || sub.Status == domain.SubmissionRejected {
			data, _ := json.Marshal(sub)
			fmt.Fprintf(w, "event: snapshot\ndata: %s\n\n", data)
			flusher.Flush()
			return
		}
	}

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Type, evt.Data)
			flusher.Flush()
			if evt.Type == services.EventTypeOutcome || evt.Type == services.EventTypeRejected || evt.Type == services.EventTypeError {
				return
			}
		}
	}
}
