package jobs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const jobColumns = "id, episode_id, status, manuscript_hash, manuscript_json, total_segments, completed_segments, progress, error_message, retry_count, created_at, updated_at, started_at, completed_at"

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		id           int64
		episodeID    int64
		statusStr    string
		hash         string
		manuscript   string
		total        int
		completed    int
		progress     int
		errorMessage sql.NullString
		retryCount   int
		createdRaw   sql.NullString
		updatedRaw   sql.NullString
		startedRaw   sql.NullString
		completedRaw sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&episodeID,
		&statusStr,
		&hash,
		&manuscript,
		&total,
		&completed,
		&progress,
		&errorMessage,
		&retryCount,
		&createdRaw,
		&updatedRaw,
		&startedRaw,
		&completedRaw,
	); err != nil {
		return nil, err
	}

	job := &Job{
		ID:                id,
		EpisodeID:         episodeID,
		Status:            Status(statusStr),
		ManuscriptHash:    hash,
		ManuscriptJSON:    manuscript,
		TotalSegments:     total,
		CompletedSegments: completed,
		Progress:          progress,
		ErrorMessage:      errorMessage.String,
		RetryCount:        retryCount,
	}

	if created, err := parseTimeString(createdRaw.String); err == nil {
		job.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		job.UpdatedAt = updated
	}
	if startedRaw.Valid {
		if started, err := parseTimeString(startedRaw.String); err == nil {
			job.StartedAt = &started
		}
	}
	if completedRaw.Valid {
		if done, err := parseTimeString(completedRaw.String); err == nil {
			job.CompletedAt = &done
		}
	}
	return job, nil
}

// CreateJob inserts a queued job carrying a frozen manuscript snapshot.
func (s *Store) CreateJob(ctx context.Context, episodeID int64, hash, manuscriptJSON string, totalSegments int) (*Job, error) {
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)

	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO jobs (
            episode_id, status, manuscript_hash, manuscript_json,
            total_segments, completed_segments, progress, retry_count,
            created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, 0, 0, 0, ?, ?)`,
		episodeID,
		StatusQueued,
		hash,
		manuscriptJSON,
		totalSegments,
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetJob(ctx, id)
}

// GetJob fetches a job by identifier. Returns nil without error when the
// job does not exist.
func (s *Store) GetJob(ctx context.Context, id int64) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// LatestForEpisode returns the most recently created job for an episode.
func (s *Store) LatestForEpisode(ctx context.Context, episodeID int64) (*Job, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE episode_id = ? ORDER BY id DESC LIMIT 1`,
		episodeID,
	)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest for episode: %w", err)
	}
	return job, nil
}

// ListJobs returns jobs filtered by status set (or all jobs when no status
// is provided), newest first.
func (s *Store) ListJobs(ctx context.Context, statuses ...Status) ([]*Job, error) {
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + jobColumns + ` FROM jobs`
	orderClause := ` ORDER BY id DESC`

	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		query := baseQuery + ` WHERE status IN (` + placeholders + `)` + orderClause
		rows, err = s.db.QueryContext(ctx, query, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var items []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, job)
	}
	return items, rows.Err()
}

// QueuedJobIDs returns identifiers of all queued jobs in creation order.
// The daemon re-enqueues these on startup so work survives a restart.
func (s *Store) QueuedJobIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM jobs WHERE status = ? ORDER BY id`, StatusQueued)
	if err != nil {
		return nil, fmt.Errorf("queued job ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ActiveJobExists reports whether a queued or running job already covers
// the given episode and manuscript hash. The scheduler uses this as an
// idempotency gate so identical content is never generated twice
// concurrently.
func (s *Store) ActiveJobExists(ctx context.Context, episodeID int64, hash string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(
		ctx,
		`SELECT COUNT(1) FROM jobs WHERE episode_id = ? AND manuscript_hash = ? AND status IN (?, ?)`,
		episodeID,
		hash,
		StatusQueued,
		StatusRunning,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check active job: %w", err)
	}
	return count > 0, nil
}

// Transition moves a job to a new status, stamping started_at on the
// first move to running and completed_at on any terminal status. The
// error message is stored verbatim (and cleared for non-failure states).
func (s *Store) Transition(ctx context.Context, id int64, to Status, errorMessage string) (*Job, error) {
	if _, ok := statusSet[to]; !ok {
		return nil, fmt.Errorf("unknown status %q", to)
	}

	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	query := `UPDATE jobs SET status = ?, error_message = ?, updated_at = ?`
	args := []any{to, nullableString(errorMessage), timestamp}

	if to == StatusRunning {
		query += `, started_at = COALESCE(started_at, ?)`
		args = append(args, timestamp)
	}
	if to.IsTerminal() {
		query += `, completed_at = ?`
		args = append(args, timestamp)
	}
	query += ` WHERE id = ?`
	args = append(args, id)

	if _, err := s.execWithRetry(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("transition job: %w", err)
	}
	return s.GetJob(ctx, id)
}

// ClaimQueued atomically moves a queued job to running. Returns false when
// the job is missing or no longer queued, which makes cancellation before
// start effective without extra locking.
func (s *Store) ClaimQueued(ctx context.Context, id int64) (bool, error) {
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(
		ctx,
		`UPDATE jobs SET status = ?, started_at = COALESCE(started_at, ?), error_message = NULL, updated_at = ?
         WHERE id = ? AND status = ?`,
		StatusRunning,
		timestamp,
		timestamp,
		id,
		StatusQueued,
	)
	if err != nil {
		return false, fmt.Errorf("claim queued job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// IncrementProgress advances completed_segments by one and recomputes the
// percentage in a single statement so concurrent readers never observe a
// torn update.
func (s *Store) IncrementProgress(ctx context.Context, id int64) (*Job, error) {
	if err := retryOnBusy(ensureContext(ctx), func() error {
		_, err := s.db.ExecContext(
			ctx,
			`UPDATE jobs
             SET completed_segments = completed_segments + 1,
                 progress = MIN(100, CAST(ROUND((completed_segments + 1) * 100.0 / MAX(total_segments, 1)) AS INTEGER)),
                 updated_at = ?
             WHERE id = ?`,
			time.Now().UTC().Format(time.RFC3339Nano),
			id,
		)
		return err
	}); err != nil {
		return nil, fmt.Errorf("increment progress: %w", err)
	}
	return s.GetJob(ctx, id)
}

// BumpRetryCount records that a retry job was scheduled from this one.
func (s *Store) BumpRetryCount(ctx context.Context, id int64) error {
	if _, err := s.execWithRetry(
		ctx,
		`UPDATE jobs SET retry_count = retry_count + 1, updated_at = ? WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
	); err != nil {
		return fmt.Errorf("bump retry count: %w", err)
	}
	return nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
