package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"budgetsim/internal/broadcast"
	"budgetsim/internal/log"
)

// handleStream is the server-sent events feed of the family list. The first
// frame is the current state; every later frame follows a committed change.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	rc := http.NewResponseController(w)

	sub, err := s.stream.Subscribe(ctx)
	if err != nil {
		if errors.Is(err, broadcast.ErrClosed) {
			ErrorResponse(http.StatusServiceUnavailable, "Server is shutting down").Write(w)
			return
		}
		FromError(r, err).Write(w)
		return
	}
	defer sub.Close()

	// The stream outlives any server write timeout.
	_ = rc.SetWriteDeadline(time.Time{})

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		s.logger.WarnContext(ctx, "event stream cannot flush", log.FieldError, err)
		return
	}

	logger := log.FromContext(ctx)
	logger.DebugContext(ctx, "event stream opened", log.FieldSubscriber, sub.ID)
	defer logger.DebugContext(ctx, "event stream closed", log.FieldSubscriber, sub.ID)

	keepAlive := time.NewTicker(s.keepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.streams.Done():
			return
		case <-keepAlive.C:
			if _, err := w.Write([]byte(": keepalive\n\n")); err != nil {
				return
			}
		case snap, ok := <-sub.C:
			if !ok {
				return
			}
			if err := writeEvent(w, snap); err != nil {
				logger.DebugContext(ctx, "event stream write failed", log.FieldError, err)
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}

func writeEvent(w http.ResponseWriter, snap broadcast.Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	buf := make([]byte, 0, len(payload)+8)
	buf = append(buf, "data: "...)
	buf = append(buf, payload...)
	buf = append(buf, '\n', '\n')
	_, err = w.Write(buf)
	return err
}
