package daemon

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"voicecast/internal/logging"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The daemon binds to loopback; the stream is consumed by the CLI
	// and local tooling.
	CheckOrigin: func(*http.Request) bool { return true },
}

const (
	streamPollInterval = 500 * time.Millisecond
	streamWriteTimeout = 5 * time.Second
)

// streamJob upgrades the connection and pushes job snapshots whenever
// progress or status changes, closing once the job reaches a terminal
// state.
func (s *apiServer) streamJob(w http.ResponseWriter, r *http.Request, id int64) {
	job, err := s.daemon.jobs.GetJob(r.Context(), id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if job == nil {
		s.writeError(w, http.StatusNotFound, "job not found")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade", logging.Error(err))
		return
	}
	defer conn.Close()

	// Drain control frames so pings and close messages are processed.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	send := func(view JobView) error {
		_ = conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
		return conn.WriteJSON(view)
	}

	last := FromJob(job)
	if err := send(last); err != nil {
		return
	}
	if job.Status.IsTerminal() {
		return
	}

	ticker := time.NewTicker(streamPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}

		job, err := s.daemon.jobs.GetJob(r.Context(), id)
		if err != nil || job == nil {
			return
		}
		view := FromJob(job)
		if view.Progress != last.Progress || view.Status != last.Status ||
			view.CompletedSegments != last.CompletedSegments {
			if err := send(view); err != nil {
				return
			}
			last = view
		}
		if job.Status.IsTerminal() {
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, string(job.Status)),
				time.Now().Add(streamWriteTimeout))
			return
		}
	}
}
