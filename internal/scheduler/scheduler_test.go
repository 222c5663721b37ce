package scheduler_test

import (
	"context"
	"errors"
	"testing"

	"voicecast/internal/episodes"
	"voicecast/internal/jobs"
	"voicecast/internal/logging"
	"voicecast/internal/scheduler"
	"voicecast/internal/services"
	"voicecast/internal/taskqueue"
	"voicecast/internal/testsupport"
)

type fixture struct {
	episodes  *episodes.Store
	jobs      *jobs.Store
	queue     *taskqueue.Queue
	scheduler *scheduler.Scheduler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	episodeStore := testsupport.MustOpenEpisodeStore(t, cfg)
	jobStore := testsupport.MustOpenJobStore(t, cfg)
	queue := taskqueue.New(func(context.Context, int64) {}, 8, logging.NewNop())
	return &fixture{
		episodes:  episodeStore,
		jobs:      jobStore,
		queue:     queue,
		scheduler: scheduler.New(cfg, episodeStore, jobStore, queue, logging.NewNop()),
	}
}

func TestScheduleCreatesQueuedJob(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	episode := testsupport.SeedEpisode(t, f.episodes, "Pilot", "Hello.", "Goodbye.")

	result, err := f.scheduler.Schedule(ctx, episode.ID)
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if result.AlreadyActive {
		t.Fatalf("first schedule should not report an active duplicate")
	}
	job := result.Job
	if job.Status != jobs.StatusQueued || job.TotalSegments != 2 {
		t.Fatalf("unexpected job: %+v", job)
	}
	if job.ManuscriptHash == "" || job.ManuscriptJSON == "" {
		t.Fatalf("job should carry a frozen manuscript snapshot")
	}

	updated, _ := f.episodes.GetEpisode(ctx, episode.ID)
	if updated.Status != episodes.StatusGenerating {
		t.Fatalf("episode status = %s, want generating", updated.Status)
	}
	if f.queue.Len() != 1 {
		t.Fatalf("job not enqueued")
	}
}

func TestScheduleIsIdempotentForIdenticalContent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	episode := testsupport.SeedEpisode(t, f.episodes, "Pilot", "Hello.")

	first, err := f.scheduler.Schedule(ctx, episode.ID)
	if err != nil {
		t.Fatalf("first schedule: %v", err)
	}
	second, err := f.scheduler.Schedule(ctx, episode.ID)
	if err != nil {
		t.Fatalf("second schedule: %v", err)
	}
	if !second.AlreadyActive {
		t.Fatalf("duplicate schedule should report an active job")
	}
	if second.Message != scheduler.AlreadyActiveMessage {
		t.Fatalf("message = %q", second.Message)
	}
	if second.Job.ID != first.Job.ID {
		t.Fatalf("duplicate should return the existing job")
	}

	all, _ := f.jobs.ListJobs(ctx)
	if len(all) != 1 {
		t.Fatalf("expected a single job, got %d", len(all))
	}
}

func TestScheduleAfterContentEditCreatesNewJob(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	episode := testsupport.SeedEpisode(t, f.episodes, "Pilot", "Hello.")

	first, err := f.scheduler.Schedule(ctx, episode.ID)
	if err != nil {
		t.Fatalf("first schedule: %v", err)
	}

	head, _ := f.episodes.HeadByName(ctx, "Narrator")
	if _, err := f.episodes.AddTurn(ctx, episode.ID, head.ID, "New closing line.", 0); err != nil {
		t.Fatalf("edit episode: %v", err)
	}

	second, err := f.scheduler.Schedule(ctx, episode.ID)
	if err != nil {
		t.Fatalf("second schedule: %v", err)
	}
	if second.AlreadyActive || second.Job.ID == first.Job.ID {
		t.Fatalf("edited content should get a fresh job")
	}
}

func TestScheduleReportsAllValidationProblems(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	episode, err := f.episodes.CreateEpisode(ctx, "Broken")
	if err != nil {
		t.Fatalf("create episode: %v", err)
	}
	if _, err := f.episodes.AddTurn(ctx, episode.ID, 0, "", 0); err != nil {
		t.Fatalf("add turn: %v", err)
	}

	_, err = f.scheduler.Schedule(ctx, episode.ID)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	verr, ok := services.AsValidation(err)
	if !ok {
		t.Fatalf("expected aggregated validation error")
	}
	if len(verr.Messages) != 2 {
		t.Fatalf("expected speaker and text problems, got %v", verr.Messages)
	}
}

func TestScheduleUnknownEpisode(t *testing.T) {
	f := newFixture(t)
	if _, err := f.scheduler.Schedule(context.Background(), 999); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not-found, got %v", err)
	}
}

func TestCancelQueuedJob(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	episode := testsupport.SeedEpisode(t, f.episodes, "Pilot", "Hello.")

	result, _ := f.scheduler.Schedule(ctx, episode.ID)
	canceled, err := f.scheduler.Cancel(ctx, result.Job.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if canceled.Status != jobs.StatusCanceled || canceled.CompletedAt == nil {
		t.Fatalf("unexpected canceled job: %+v", canceled)
	}

	updated, _ := f.episodes.GetEpisode(ctx, episode.ID)
	if updated.Status != episodes.StatusReady {
		t.Fatalf("episode should return to ready, got %s", updated.Status)
	}
}

func TestCancelTerminalJobConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	episode := testsupport.SeedEpisode(t, f.episodes, "Pilot", "Hello.")

	result, _ := f.scheduler.Schedule(ctx, episode.ID)
	if _, err := f.jobs.Transition(ctx, result.Job.ID, jobs.StatusSucceeded, ""); err != nil {
		t.Fatalf("finish job: %v", err)
	}

	if _, err := f.scheduler.Cancel(ctx, result.Job.ID); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestRetryOnlyFailedJobs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	episode := testsupport.SeedEpisode(t, f.episodes, "Pilot", "Hello.")

	result, _ := f.scheduler.Schedule(ctx, episode.ID)

	if _, err := f.scheduler.Retry(ctx, result.Job.ID); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("retrying a queued job should fail, got %v", err)
	}

	if _, err := f.jobs.Transition(ctx, result.Job.ID, jobs.StatusFailed, "boom"); err != nil {
		t.Fatalf("fail job: %v", err)
	}

	retried, err := f.scheduler.Retry(ctx, result.Job.ID)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if retried.Job.ID == result.Job.ID {
		t.Fatalf("retry should create a new job")
	}
	if retried.Job.Status != jobs.StatusQueued {
		t.Fatalf("retried job status = %s", retried.Job.Status)
	}

	original, _ := f.jobs.GetJob(ctx, result.Job.ID)
	if original.RetryCount != 1 {
		t.Fatalf("original retry count = %d, want 1", original.RetryCount)
	}
}

func TestRetryUnknownJob(t *testing.T) {
	f := newFixture(t)
	if _, err := f.scheduler.Retry(context.Background(), 777); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not-found, got %v", err)
	}
}
