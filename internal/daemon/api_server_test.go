package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"voicecast/internal/episodes"
	"voicecast/internal/jobs"
	"voicecast/internal/logging"
	"voicecast/internal/testsupport"
)

func newTestDaemon(t *testing.T) (*Daemon, *episodes.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}

	d, err := New(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("new daemon: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })

	episodeStore := testsupport.MustOpenEpisodeStore(t, cfg)
	return d, episodeStore
}

func doRequest(t *testing.T, d *Daemon, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	d.api.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestAPIScheduleJob(t *testing.T) {
	d, store := newTestDaemon(t)
	episode := testsupport.SeedEpisode(t, store, "Pilot", "Hello.", "World.")

	rec := doRequest(t, d, http.MethodPost, "/api/jobs", map[string]any{"episodeId": episode.ID})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	created := decode[ScheduleResponse](t, rec)
	if created.Job.EpisodeID != episode.ID || created.Job.Status != "queued" {
		t.Fatalf("unexpected job view: %+v", created.Job)
	}
	if created.Job.TotalSegments != 2 {
		t.Fatalf("totalSegments = %d", created.Job.TotalSegments)
	}

	// Same content again: 200 with the existing job and a message.
	rec = doRequest(t, d, http.MethodPost, "/api/jobs", map[string]any{"episodeId": episode.ID})
	if rec.Code != http.StatusOK {
		t.Fatalf("duplicate status = %d", rec.Code)
	}
	dup := decode[ScheduleResponse](t, rec)
	if dup.Job.ID != created.Job.ID || dup.Message == "" {
		t.Fatalf("duplicate response: %+v", dup)
	}
}

func TestAPIScheduleRejectsBadRequests(t *testing.T) {
	d, store := newTestDaemon(t)

	rec := doRequest(t, d, http.MethodPost, "/api/jobs", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("empty body status = %d", rec.Code)
	}

	rec = doRequest(t, d, http.MethodPost, "/api/jobs", map[string]any{"episodeId": 0})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("zero id status = %d", rec.Code)
	}

	rec = doRequest(t, d, http.MethodPost, "/api/jobs", map[string]any{"episodeId": 9999})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown episode status = %d", rec.Code)
	}

	// An episode with a turn that has no speaker and no text gets the full
	// problem list back.
	episode, err := store.CreateEpisode(context.Background(), "Broken")
	if err != nil {
		t.Fatalf("create episode: %v", err)
	}
	if _, err := store.AddTurn(context.Background(), episode.ID, 0, "", 0); err != nil {
		t.Fatalf("add turn: %v", err)
	}
	rec = doRequest(t, d, http.MethodPost, "/api/jobs", map[string]any{"episodeId": episode.ID})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("invalid content status = %d, body = %s", rec.Code, rec.Body.String())
	}
	problems := decode[ErrorResponse](t, rec)
	if len(problems.Problems) != 2 {
		t.Fatalf("problems = %v", problems.Problems)
	}
}

func TestAPIDescribeJob(t *testing.T) {
	d, store := newTestDaemon(t)
	episode := testsupport.SeedEpisode(t, store, "Pilot", "Hello.")

	rec := doRequest(t, d, http.MethodPost, "/api/jobs", map[string]any{"episodeId": episode.ID})
	created := decode[ScheduleResponse](t, rec)

	rec = doRequest(t, d, http.MethodGet, fmt.Sprintf("/api/jobs/%d", created.Job.ID), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	got := decode[JobResponse](t, rec)
	if got.Job.ID != created.Job.ID {
		t.Fatalf("unexpected response: %+v", got)
	}
	if len(got.Assets) != 0 {
		t.Fatalf("queued job should have no assets yet: %+v", got.Assets)
	}

	rec = doRequest(t, d, http.MethodGet, "/api/jobs/424242", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing job status = %d", rec.Code)
	}

	rec = doRequest(t, d, http.MethodGet, "/api/jobs/not-a-number", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad id status = %d", rec.Code)
	}
}

func TestAPICancelJob(t *testing.T) {
	d, store := newTestDaemon(t)
	episode := testsupport.SeedEpisode(t, store, "Pilot", "Hello.")

	rec := doRequest(t, d, http.MethodPost, "/api/jobs", map[string]any{"episodeId": episode.ID})
	created := decode[ScheduleResponse](t, rec)

	rec = doRequest(t, d, http.MethodPost, fmt.Sprintf("/api/jobs/%d/cancel", created.Job.ID), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("cancel status = %d, body = %s", rec.Code, rec.Body.String())
	}
	canceled := decode[JobResponse](t, rec)
	if canceled.Job.Status != "canceled" {
		t.Fatalf("status after cancel = %s", canceled.Job.Status)
	}

	rec = doRequest(t, d, http.MethodPost, fmt.Sprintf("/api/jobs/%d/cancel", created.Job.ID), nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("second cancel status = %d", rec.Code)
	}

	rec = doRequest(t, d, http.MethodPost, "/api/jobs/424242/cancel", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing job cancel status = %d", rec.Code)
	}
}

func TestAPIRetryJob(t *testing.T) {
	d, store := newTestDaemon(t)
	ctx := context.Background()
	episode := testsupport.SeedEpisode(t, store, "Pilot", "Hello.")

	rec := doRequest(t, d, http.MethodPost, "/api/jobs", map[string]any{"episodeId": episode.ID})
	created := decode[ScheduleResponse](t, rec)

	rec = doRequest(t, d, http.MethodPost, fmt.Sprintf("/api/jobs/%d/retry", created.Job.ID), nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("retry of queued job status = %d", rec.Code)
	}

	if _, err := d.jobs.Transition(ctx, created.Job.ID, jobs.StatusFailed, "boom"); err != nil {
		t.Fatalf("fail job: %v", err)
	}

	rec = doRequest(t, d, http.MethodPost, fmt.Sprintf("/api/jobs/%d/retry", created.Job.ID), nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("retry status = %d, body = %s", rec.Code, rec.Body.String())
	}
	retried := decode[ScheduleResponse](t, rec)
	if retried.Job.ID == created.Job.ID || retried.Job.Status != "queued" {
		t.Fatalf("unexpected retried job: %+v", retried.Job)
	}
}

func TestAPIRetryReportsContentProblems(t *testing.T) {
	d, store := newTestDaemon(t)
	ctx := context.Background()
	episode := testsupport.SeedEpisode(t, store, "Pilot", "Hello.")

	rec := doRequest(t, d, http.MethodPost, "/api/jobs", map[string]any{"episodeId": episode.ID})
	created := decode[ScheduleResponse](t, rec)

	if _, err := d.jobs.Transition(ctx, created.Job.ID, jobs.StatusFailed, "boom"); err != nil {
		t.Fatalf("fail job: %v", err)
	}
	// Break the episode before retrying: a turn with no speaker and no
	// text now makes the content invalid.
	if _, err := store.AddTurn(ctx, episode.ID, 0, "", 0); err != nil {
		t.Fatalf("add turn: %v", err)
	}

	rec = doRequest(t, d, http.MethodPost, fmt.Sprintf("/api/jobs/%d/retry", created.Job.ID), nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("retry of invalid content status = %d, body = %s", rec.Code, rec.Body.String())
	}
	problems := decode[ErrorResponse](t, rec)
	if len(problems.Problems) != 2 {
		t.Fatalf("problems = %v", problems.Problems)
	}
}

func TestAPIListJobsFiltersByStatus(t *testing.T) {
	d, store := newTestDaemon(t)
	ctx := context.Background()

	first := testsupport.SeedEpisode(t, store, "One", "Hello.")
	second := testsupport.SeedEpisode(t, store, "Two", "World.")

	rec := doRequest(t, d, http.MethodPost, "/api/jobs", map[string]any{"episodeId": first.ID})
	failed := decode[ScheduleResponse](t, rec)
	if _, err := d.jobs.Transition(ctx, failed.Job.ID, jobs.StatusFailed, "boom"); err != nil {
		t.Fatalf("fail job: %v", err)
	}
	doRequest(t, d, http.MethodPost, "/api/jobs", map[string]any{"episodeId": second.ID})

	rec = doRequest(t, d, http.MethodGet, "/api/jobs", nil)
	if got := decode[JobListResponse](t, rec); len(got.Jobs) != 2 {
		t.Fatalf("unfiltered list = %d jobs", len(got.Jobs))
	}

	rec = doRequest(t, d, http.MethodGet, "/api/jobs?status=failed", nil)
	got := decode[JobListResponse](t, rec)
	if len(got.Jobs) != 1 || got.Jobs[0].ID != failed.Job.ID {
		t.Fatalf("filtered list = %+v", got.Jobs)
	}
}

func TestAPIStatus(t *testing.T) {
	d, _ := newTestDaemon(t)

	rec := doRequest(t, d, http.MethodGet, "/api/status", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	payload := decode[statusPayload](t, rec)
	if payload.Running {
		t.Fatalf("daemon not started, running should be false")
	}
	if payload.DBPath == "" || payload.LockPath == "" {
		t.Fatalf("paths missing: %+v", payload)
	}
}

func TestAPIVoices(t *testing.T) {
	d, _ := newTestDaemon(t)

	rec := doRequest(t, d, http.MethodGet, "/api/voices", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var payload struct {
		Voices []struct {
			ID       string `json:"id"`
			Provider string `json:"provider"`
		} `json:"voices"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(payload.Voices) == 0 {
		t.Fatalf("expected the configured provider's voices")
	}
	for _, voice := range payload.Voices {
		if voice.Provider != "openai" {
			t.Fatalf("unexpected provider %q", voice.Provider)
		}
	}
}
