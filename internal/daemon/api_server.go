package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"voicecast/internal/config"
	"voicecast/internal/jobs"
	"voicecast/internal/logging"
	"voicecast/internal/services"
)

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	if cfg == nil || d == nil {
		return nil, nil
	}
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil, nil
	}

	srv := &apiServer{
		bind:   bind,
		logger: logging.NewComponentLogger(logger, "api"),
		daemon: d,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", srv.handleStatus)
	mux.HandleFunc("/api/voices", srv.handleVoices)
	mux.HandleFunc("/api/jobs", srv.handleJobs)
	mux.HandleFunc("/api/jobs/", srv.handleJob)
	mux.Handle("/media/", http.StripPrefix("/media/",
		http.FileServer(http.Dir(cfg.Paths.StorageDir))))

	srv.server = &http.Server{
		Handler:           srv.withRequestID(mux),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

// withRequestID tags every request with a generated identifier. The id is
// echoed in the X-Request-Id response header so CLI output and daemon logs
// can be correlated.
func (s *apiServer) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.NewString()
		w.Header().Set("X-Request-Id", requestID)
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("request handled",
			logging.String(logging.FieldRequestID, requestID),
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
			logging.Duration("elapsed", time.Since(start)))
	})
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

// Handler exposes the HTTP surface for tests.
func (s *apiServer) Handler() http.Handler {
	return s.server.Handler
}

type statusPayload struct {
	Running     bool   `json:"running"`
	QueueLength int    `json:"queueLength"`
	DBPath      string `json:"dbPath"`
	LockPath    string `json:"lockPath"`
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, statusPayload{
		Running:     s.daemon.Running(),
		QueueLength: s.daemon.queue.Len(),
		DBPath:      s.daemon.jobs.Path(),
		LockPath:    s.daemon.lockPath,
	})
}

func (s *apiServer) handleVoices(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	voices := s.daemon.resolver.AvailableVoices()
	if filter := strings.TrimSpace(r.URL.Query().Get("provider")); filter != "" {
		filtered := voices[:0]
		for _, voice := range voices {
			if voice.Provider == filter {
				filtered = append(filtered, voice)
			}
		}
		voices = filtered
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"voices": voices})
}

type scheduleRequest struct {
	EpisodeID int64 `json:"episodeId"`
}

func (s *apiServer) handleJobs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listJobs(w, r)
	case http.MethodPost:
		s.scheduleJob(w, r)
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *apiServer) listJobs(w http.ResponseWriter, r *http.Request) {
	var statuses []jobs.Status
	for _, value := range r.URL.Query()["status"] {
		if status, ok := jobs.ParseStatus(value); ok {
			statuses = append(statuses, status)
		}
	}

	list, err := s.daemon.jobs.ListJobs(r.Context(), statuses...)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	views := make([]JobView, 0, len(list))
	for _, job := range list {
		views = append(views, FromJob(job))
	}
	s.writeJSON(w, http.StatusOK, JobListResponse{Jobs: views})
}

func (s *apiServer) scheduleJob(w http.ResponseWriter, r *http.Request) {
	var req scheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.EpisodeID <= 0 {
		s.writeError(w, http.StatusBadRequest, "episodeId is required")
		return
	}

	result, err := s.daemon.scheduler.Schedule(r.Context(), req.EpisodeID)
	if err != nil {
		s.writeSchedulingError(w, err)
		return
	}

	status := http.StatusCreated
	if result.AlreadyActive {
		status = http.StatusOK
	}
	s.writeJSON(w, status, ScheduleResponse{Job: FromJob(result.Job), Message: result.Message})
}

func (s *apiServer) handleJob(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
	idStr, action, _ := strings.Cut(rest, "/")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		s.writeError(w, http.StatusBadRequest, "invalid job id")
		return
	}

	switch action {
	case "":
		if r.Method != http.MethodGet {
			s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		s.describeJob(w, r, id)
	case "cancel":
		if r.Method != http.MethodPost {
			s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		s.cancelJob(w, r, id)
	case "retry":
		if r.Method != http.MethodPost {
			s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		s.retryJob(w, r, id)
	case "stream":
		s.streamJob(w, r, id)
	default:
		s.writeError(w, http.StatusNotFound, "not found")
	}
}

func (s *apiServer) describeJob(w http.ResponseWriter, r *http.Request, id int64) {
	job, err := s.daemon.jobs.GetJob(r.Context(), id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if job == nil {
		s.writeError(w, http.StatusNotFound, "job not found")
		return
	}

	assets, err := s.daemon.jobs.AssetsForJob(r.Context(), id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	views := make([]AssetView, 0, len(assets))
	for _, asset := range assets {
		views = append(views, FromAsset(asset))
	}
	s.writeJSON(w, http.StatusOK, JobResponse{Job: FromJob(job), Assets: views})
}

func (s *apiServer) cancelJob(w http.ResponseWriter, r *http.Request, id int64) {
	job, err := s.daemon.scheduler.Cancel(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrNotFound):
			s.writeError(w, http.StatusNotFound, "job not found")
		case errors.Is(err, services.ErrValidation):
			s.writeError(w, http.StatusConflict, "job already finished")
		default:
			s.writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	s.writeJSON(w, http.StatusOK, JobResponse{Job: FromJob(job)})
}

func (s *apiServer) retryJob(w http.ResponseWriter, r *http.Request, id int64) {
	result, err := s.daemon.scheduler.Retry(r.Context(), id)
	if err != nil {
		// Content problems from the inner scheduling run are 422 with the
		// full problem list; the plain validation marker is the retryable
		// state conflict.
		if verr, ok := services.AsValidation(err); ok {
			s.writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
				Error:    "episode content is not valid",
				Problems: verr.Messages,
			})
			return
		}
		switch {
		case errors.Is(err, services.ErrNotFound):
			s.writeError(w, http.StatusNotFound, "job not found")
		case errors.Is(err, services.ErrValidation):
			s.writeError(w, http.StatusConflict, "only failed jobs can be retried")
		default:
			s.writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	status := http.StatusCreated
	if result.AlreadyActive {
		status = http.StatusOK
	}
	s.writeJSON(w, status, ScheduleResponse{Job: FromJob(result.Job), Message: result.Message})
}

// writeSchedulingError maps scheduler failures onto the HTTP surface:
// unknown episodes are 404, invalid content is 422 with the full problem
// list, everything else is 500.
func (s *apiServer) writeSchedulingError(w http.ResponseWriter, err error) {
	if errors.Is(err, services.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "episode not found")
		return
	}
	if verr, ok := services.AsValidation(err); ok {
		s.writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error:    "episode content is not valid",
			Problems: verr.Messages,
		})
		return
	}
	if errors.Is(err, services.ErrValidation) {
		s.writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	s.writeError(w, http.StatusInternalServerError, err.Error())
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Warn("encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, ErrorResponse{Error: message})
}
