package http

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"tesouraria/internal/app"
	"tesouraria/internal/log"
)

// heartbeatInterval keeps idle proxies from closing the event stream.
const heartbeatInterval = 25 * time.Second

// handleEvents streams a "snapshot" event for every ledger snapshot until
// the client goes away. The subscription is released on return.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.FromContext(ctx)
	sess := sessionFrom(ctx)

	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		logger.WarnContext(ctx, "Failed to clear write deadline", log.FieldError, err.Error())
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		logger.WarnContext(ctx, "Event stream not supported", log.FieldError, err.Error())
		return
	}

	snapshots, unsubscribe := s.deps.Feed.Subscribe(ctx)
	defer unsubscribe()

	logger.DebugContext(ctx, "Event stream opened", log.FieldSubscribers, s.deps.Feed.Subscribers())
	defer logger.DebugContext(ctx, "Event stream closed")

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-snapshots:
			if !ok {
				return
			}
			s.deps.Sessions.Dispatch(sess.token, app.SnapshotReceived{Snapshot: snap})
			if _, err := fmt.Fprintf(w, "event: snapshot\ndata: {\"version\":%d}\n\n", snap.Version); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}
