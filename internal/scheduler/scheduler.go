// Package scheduler turns episodes into queued generation jobs. It owns
// the validation and idempotency gates that sit between the API surface
// and the runner.
package scheduler

import (
	"context"
	"encoding/json"
	"log/slog"

	"voicecast/internal/config"
	"voicecast/internal/episodes"
	"voicecast/internal/jobs"
	"voicecast/internal/logging"
	"voicecast/internal/manuscript"
	"voicecast/internal/services"
	"voicecast/internal/taskqueue"
)

// AlreadyActiveMessage is returned when scheduling is skipped because an
// equivalent job is queued or running.
const AlreadyActiveMessage = "generation already in progress for this content"

// Result describes the outcome of a scheduling request.
type Result struct {
	Job           *jobs.Job
	AlreadyActive bool
	Message       string
}

// Scheduler validates episode content and creates queued jobs.
type Scheduler struct {
	cfg      *config.Config
	episodes *episodes.Store
	builder  *episodes.Builder
	jobs     *jobs.Store
	queue    *taskqueue.Queue
	logger   *slog.Logger
}

// New constructs a scheduler.
func New(cfg *config.Config, episodeStore *episodes.Store, jobStore *jobs.Store, queue *taskqueue.Queue, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Scheduler{
		cfg:      cfg,
		episodes: episodeStore,
		builder:  episodes.NewBuilder(episodeStore, cfg),
		jobs:     jobStore,
		queue:    queue,
		logger:   logging.NewComponentLogger(logger, "scheduler"),
	}
}

// Schedule builds and validates the episode's manuscript, then creates
// and enqueues a generation job. When a queued or running job already
// covers identical content, that job is returned instead of a new one.
func (s *Scheduler) Schedule(ctx context.Context, episodeID int64) (*Result, error) {
	m, err := s.builder.BuildManuscript(ctx, episodeID)
	if err != nil {
		return nil, err
	}

	limits := manuscript.Limits{
		MaxSegments:     s.cfg.Limits.MaxSegments,
		MaxSegmentChars: s.cfg.Limits.MaxSegmentChars,
	}
	if problems := manuscript.Validate(m, limits); len(problems) > 0 {
		return nil, services.NewValidationError(problems)
	}

	hash := manuscript.Hash(m)

	active, err := s.jobs.ActiveJobExists(ctx, episodeID, hash)
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, "scheduler", "schedule", "check active jobs", err)
	}
	if active {
		existing, err := s.jobs.LatestForEpisode(ctx, episodeID)
		if err != nil {
			return nil, services.Wrap(services.ErrStorage, "scheduler", "schedule", "load active job", err)
		}
		s.logger.Info("skipping duplicate generation",
			logging.Int64(logging.FieldEpisodeID, episodeID),
			logging.String("manuscript_hash", hash))
		return &Result{Job: existing, AlreadyActive: true, Message: AlreadyActiveMessage}, nil
	}

	snapshot, err := json.Marshal(m)
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, "scheduler", "schedule", "marshal manuscript", err)
	}

	job, err := s.jobs.CreateJob(ctx, episodeID, hash, string(snapshot), len(m.Segments))
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, "scheduler", "schedule", "create job", err)
	}

	if err := s.episodes.SetStatus(ctx, episodeID, episodes.StatusGenerating); err != nil {
		return nil, err
	}

	if err := s.queue.Enqueue(job.ID); err != nil {
		// The job row survives; a daemon restart re-enqueues it.
		s.logger.Warn("enqueue failed, job remains queued",
			logging.Int64(logging.FieldJobID, job.ID),
			logging.Error(err))
	}

	s.logger.Info("job scheduled",
		logging.Int64(logging.FieldJobID, job.ID),
		logging.Int64(logging.FieldEpisodeID, episodeID),
		logging.Int("segments", len(m.Segments)))
	return &Result{Job: job}, nil
}

// Retry schedules a fresh generation run for the episode behind a failed
// job. The new job snapshots current content, so fixes made after the
// failure are picked up.
func (s *Scheduler) Retry(ctx context.Context, jobID int64) (*Result, error) {
	job, err := s.jobs.GetJob(ctx, jobID)
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, "scheduler", "retry", "load job", err)
	}
	if job == nil {
		return nil, services.Wrap(services.ErrNotFound, "scheduler", "retry", "job not found", nil)
	}
	if !job.Status.IsRetryable() {
		return nil, services.Wrap(services.ErrValidation, "scheduler", "retry",
			"only failed jobs can be retried", nil)
	}

	result, err := s.Schedule(ctx, job.EpisodeID)
	if err != nil {
		return nil, err
	}
	if !result.AlreadyActive {
		if err := s.jobs.BumpRetryCount(ctx, jobID); err != nil {
			s.logger.Warn("record retry count", logging.Int64(logging.FieldJobID, jobID), logging.Error(err))
		}
	}
	return result, nil
}

// Cancel moves a non-terminal job to canceled. Jobs that have not started
// yet will be skipped by the runner's queued-status guard; a running job
// finishes its current run and the cancellation only blocks future
// scheduling. Canceling a terminal job is an error.
func (s *Scheduler) Cancel(ctx context.Context, jobID int64) (*jobs.Job, error) {
	job, err := s.jobs.GetJob(ctx, jobID)
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, "scheduler", "cancel", "load job", err)
	}
	if job == nil {
		return nil, services.Wrap(services.ErrNotFound, "scheduler", "cancel", "job not found", nil)
	}
	if job.Status.IsTerminal() {
		return nil, services.Wrap(services.ErrValidation, "scheduler", "cancel",
			"job already finished", nil)
	}

	canceled, err := s.jobs.Transition(ctx, jobID, jobs.StatusCanceled, "")
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, "scheduler", "cancel", "transition job", err)
	}

	episode, err := s.episodes.GetEpisode(ctx, job.EpisodeID)
	if err == nil && episode != nil && episode.Status == episodes.StatusGenerating {
		if err := s.episodes.SetStatus(ctx, job.EpisodeID, episodes.StatusReady); err != nil {
			s.logger.Warn("reset episode status",
				logging.Int64(logging.FieldEpisodeID, job.EpisodeID),
				logging.Error(err))
		}
	}

	s.logger.Info("job canceled", logging.Int64(logging.FieldJobID, jobID))
	return canceled, nil
}
