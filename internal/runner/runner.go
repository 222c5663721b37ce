// Package runner executes generation jobs: it synthesizes every segment,
// stitches the chunks into one episode file, and records the resulting
// assets.
package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"voicecast/internal/audio"
	"voicecast/internal/config"
	"voicecast/internal/episodes"
	"voicecast/internal/jobs"
	"voicecast/internal/logging"
	"voicecast/internal/manuscript"
	"voicecast/internal/providers"
	"voicecast/internal/services"
	"voicecast/internal/storage"
)

// ProviderResolver maps a manuscript provider slug to a backend. Injected
// so tests can substitute fakes for the network providers.
type ProviderResolver func(slug string) (providers.Provider, error)

// Notifier receives terminal job outcomes. Satisfied by
// notifications.Service; delivery failures are logged, never fatal.
type Notifier interface {
	NotifyJobSucceeded(ctx context.Context, episodeTitle string, jobID int64) error
	NotifyJobFailed(ctx context.Context, episodeTitle string, jobID int64, reason string) error
}

// Runner processes one job at a time.
type Runner struct {
	cfg      *config.Config
	jobs     *jobs.Store
	episodes *episodes.Store
	builder  *episodes.Builder
	resolve  ProviderResolver
	stitcher *audio.Stitcher
	norm     *audio.Normalizer
	backend  storage.Backend
	notifier Notifier
	logger   *slog.Logger
}

// New constructs a runner.
func New(
	cfg *config.Config,
	jobStore *jobs.Store,
	episodeStore *episodes.Store,
	resolve ProviderResolver,
	backend storage.Backend,
	notifier Notifier,
	logger *slog.Logger,
) *Runner {
	if logger == nil {
		logger = logging.NewNop()
	}
	ffmpegPath, ok := cfg.FFmpeg()
	if !ok {
		ffmpegPath = ""
	}
	return &Runner{
		cfg:      cfg,
		jobs:     jobStore,
		episodes: episodeStore,
		builder:  episodes.NewBuilder(episodeStore, cfg),
		resolve:  resolve,
		stitcher: audio.NewStitcher(ffmpegPath),
		norm:     audio.NewNormalizer(ffmpegPath, cfg.Audio.TargetLUFS),
		backend:  backend,
		notifier: notifier,
		logger:   logging.NewComponentLogger(logger, "runner"),
	}
}

// Process executes one job end to end. Jobs that are no longer queued
// (canceled, already picked up, or retried away) are skipped silently.
// Any failure moves the job and its episode to failed; the job row keeps
// the error message for the API and CLI to surface.
func (r *Runner) Process(ctx context.Context, jobID int64) {
	claimed, err := r.jobs.ClaimQueued(ctx, jobID)
	if err != nil {
		r.logger.Error("claim job", logging.Int64(logging.FieldJobID, jobID), logging.Error(err))
		return
	}
	if !claimed {
		r.logger.Debug("job no longer queued, skipping", logging.Int64(logging.FieldJobID, jobID))
		return
	}

	job, err := r.jobs.GetJob(ctx, jobID)
	if err != nil || job == nil {
		r.logger.Error("load claimed job", logging.Int64(logging.FieldJobID, jobID), logging.Error(err))
		return
	}

	logger := r.logger.With(
		logging.Int64(logging.FieldJobID, job.ID),
		logging.Int64(logging.FieldEpisodeID, job.EpisodeID),
	)
	logger.Info("job started", logging.Int("segments", job.TotalSegments))

	if err := r.run(ctx, job, logger); err != nil {
		r.fail(ctx, job, err, logger)
		return
	}
}

func (r *Runner) run(ctx context.Context, job *jobs.Job, logger *slog.Logger) error {
	var m manuscript.Manuscript
	if err := json.Unmarshal([]byte(job.ManuscriptJSON), &m); err != nil {
		return services.Wrap(services.ErrStorage, "runner", "run", "decode manuscript snapshot", err)
	}

	if err := r.checkFreshness(ctx, job); err != nil {
		return err
	}

	format, err := audio.ParseFormat(r.cfg.Audio.OutputFormat)
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "runner", "run", "output format", err)
	}

	workDir := filepath.Join(r.cfg.Paths.DataDir, "work", fmt.Sprintf("job-%d", job.ID))
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return services.Wrap(services.ErrStorage, "runner", "run", "create work directory", err)
	}
	defer os.RemoveAll(workDir)

	chunkPaths, totalChunkMS, err := r.synthesizeSegments(ctx, job, &m, format, workDir, logger)
	if err != nil {
		return err
	}

	finalName := fmt.Sprintf("episode-%d-final.%s", job.EpisodeID, format.Extension())
	finalWork := filepath.Join(workDir, finalName)
	if err := r.stitcher.Stitch(ctx, audio.StitchRequest{
		ChunkPaths:   chunkPaths,
		OutputPath:   finalWork,
		Format:       format,
		Bitrate:      r.cfg.Audio.OutputBitrate,
		SilenceGapMS: r.cfg.Audio.SilenceGapMs,
	}); err != nil {
		return err
	}

	if r.cfg.Audio.NormalizeLoudness {
		normalized := filepath.Join(workDir, "normalized-"+finalName)
		if err := r.norm.Normalize(ctx, finalWork, normalized, format, r.cfg.Audio.OutputBitrate); err != nil {
			return err
		}
		finalWork = normalized
	}

	info, err := os.Stat(finalWork)
	if err != nil {
		return services.Wrap(services.ErrStorage, "runner", "run", "stat final output", err)
	}

	storedPath, err := r.backend.Store(ctx, finalWork, finalName)
	if err != nil {
		return err
	}
	finalURL := r.backend.URL(finalName)

	gapMS := int64(0)
	if len(chunkPaths) > 1 && r.cfg.Audio.SilenceGapMs > 0 {
		gapMS = int64(len(chunkPaths)-1) * int64(r.cfg.Audio.SilenceGapMs)
	}
	if _, err := r.jobs.CreateAsset(ctx, &jobs.Asset{
		JobID:        job.ID,
		EpisodeID:    job.EpisodeID,
		Type:         jobs.AssetFinal,
		SegmentIndex: -1,
		Path:         storedPath,
		URL:          finalURL,
		MIMEType:     format.MIMEType(),
		SizeBytes:    info.Size(),
		DurationMS:   totalChunkMS + gapMS,
	}); err != nil {
		return services.Wrap(services.ErrStorage, "runner", "run", "record final asset", err)
	}

	if _, err := r.jobs.Transition(ctx, job.ID, jobs.StatusSucceeded, ""); err != nil {
		return services.Wrap(services.ErrStorage, "runner", "run", "mark job succeeded", err)
	}
	if err := r.episodes.SetGenerated(ctx, job.EpisodeID, finalURL); err != nil {
		logger.Warn("update episode status", logging.Error(err))
	}

	logger.Info("job succeeded",
		logging.Int64("size_bytes", info.Size()),
		logging.Int64("duration_ms", totalChunkMS+gapMS))
	if r.notifier != nil {
		if err := r.notifier.NotifyJobSucceeded(ctx, m.Title, job.ID); err != nil {
			logger.Warn("deliver success notification", logging.Error(err))
		}
	}
	return nil
}

// checkFreshness rebuilds the manuscript from current content and rejects
// the job when the hash no longer matches the snapshot taken at
// scheduling time.
func (r *Runner) checkFreshness(ctx context.Context, job *jobs.Job) error {
	current, err := r.builder.BuildManuscript(ctx, job.EpisodeID)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return services.Wrap(services.ErrStale, "runner", "freshness", "episode deleted since scheduling", nil)
		}
		return err
	}
	if manuscript.Hash(current) != job.ManuscriptHash {
		return services.Wrap(services.ErrStale, "runner", "freshness", "content changed since scheduling", nil)
	}
	return nil
}

func (r *Runner) synthesizeSegments(
	ctx context.Context,
	job *jobs.Job,
	m *manuscript.Manuscript,
	format audio.Format,
	workDir string,
	logger *slog.Logger,
) ([]string, int64, error) {
	providerCache := make(map[string]providers.Provider)
	chunkPaths := make([]string, 0, len(m.Segments))
	var totalMS int64

	throttle := time.Duration(0)
	if rate := r.cfg.Limits.RateLimitPerMinute; rate > 0 {
		throttle = time.Minute / time.Duration(rate)
	}

	for i, segment := range m.Segments {
		if err := ctx.Err(); err != nil {
			return nil, 0, services.Wrap(services.ErrProvider, "runner", "synthesize", "canceled", err)
		}

		provider, ok := providerCache[segment.Provider]
		if !ok {
			var err error
			provider, err = r.resolve(segment.Provider)
			if err != nil {
				return nil, 0, err
			}
			providerCache[segment.Provider] = provider
		}

		chunk, err := provider.Synthesize(ctx, providers.SynthesisRequest{
			Text:          segment.Text,
			VoiceID:       segment.VoiceID,
			Speed:         segment.Speed,
			SpeakingStyle: segment.SpeakingStyle,
			Format:        format,
		})
		if err != nil {
			return nil, 0, err
		}

		chunkName := fmt.Sprintf("episode-%d-seg-%03d.%s", job.EpisodeID, segment.Index, format.Extension())
		chunkWork := filepath.Join(workDir, chunkName)
		if err := os.WriteFile(chunkWork, chunk.Data, 0o644); err != nil {
			return nil, 0, services.Wrap(services.ErrStorage, "runner", "synthesize", "write chunk", err)
		}

		// Chunks outlive the work directory so their asset rows stay valid
		// after the run.
		chunkRel := fmt.Sprintf("episodes/%d/%s", job.EpisodeID, chunkName)
		chunkStored, err := r.backend.Store(ctx, chunkWork, chunkRel)
		if err != nil {
			return nil, 0, err
		}
		chunkPaths = append(chunkPaths, chunkStored)
		totalMS += chunk.DurationMS

		if _, err := r.jobs.CreateAsset(ctx, &jobs.Asset{
			JobID:        job.ID,
			EpisodeID:    job.EpisodeID,
			Type:         jobs.AssetChunk,
			SegmentIndex: segment.Index,
			Path:         chunkStored,
			URL:          r.backend.URL(chunkRel),
			MIMEType:     chunk.MIMEType,
			SizeBytes:    int64(len(chunk.Data)),
			DurationMS:   chunk.DurationMS,
		}); err != nil {
			return nil, 0, services.Wrap(services.ErrStorage, "runner", "synthesize", "record chunk asset", err)
		}

		updated, err := r.jobs.IncrementProgress(ctx, job.ID)
		if err != nil {
			return nil, 0, services.Wrap(services.ErrStorage, "runner", "synthesize", "update progress", err)
		}
		logger.Debug("segment synthesized",
			logging.Int(logging.FieldSegment, segment.Index),
			logging.String(logging.FieldProvider, provider.Slug()),
			logging.Int("progress", updated.Progress))

		if throttle > 0 && i < len(m.Segments)-1 {
			select {
			case <-time.After(throttle):
			case <-ctx.Done():
				return nil, 0, services.Wrap(services.ErrProvider, "runner", "synthesize", "canceled", ctx.Err())
			}
		}
	}
	return chunkPaths, totalMS, nil
}

func (r *Runner) fail(ctx context.Context, job *jobs.Job, cause error, logger *slog.Logger) {
	logger.Error("job failed", logging.Error(cause))
	if _, err := r.jobs.Transition(ctx, job.ID, jobs.StatusFailed, cause.Error()); err != nil {
		logger.Error("mark job failed", logging.Error(err))
	}
	if err := r.episodes.SetStatus(ctx, job.EpisodeID, episodes.StatusFailed); err != nil {
		logger.Warn("update episode status", logging.Error(err))
	}
	if r.notifier != nil {
		title := fmt.Sprintf("episode %d", job.EpisodeID)
		if episode, err := r.episodes.GetEpisode(ctx, job.EpisodeID); err == nil && episode != nil {
			title = episode.Title
		}
		if err := r.notifier.NotifyJobFailed(ctx, title, job.ID, cause.Error()); err != nil {
			logger.Warn("deliver failure notification", logging.Error(err))
		}
	}
}
