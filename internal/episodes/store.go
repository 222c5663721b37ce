// Package episodes persists authored content: speakers, episodes, and
// their ordered turns. It shares the SQLite database file with the job
// store but owns its own tables.
package episodes

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"voicecast/internal/config"
	"voicecast/internal/services"
)

//go:embed schema.sql
var schemaSQL string

// Store manages episode persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the content tables in the shared
// database under the data directory.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(filepath.Join(cfg.Paths.DataDir, "voicecast.db"))
}

// OpenPath connects to the content tables at an explicit database location.
func OpenPath(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	// Content tables are created idempotently; the job store owns the
	// schema_version row for the shared file.
	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create content schema: %w", err)
	}

	return &Store{db: db, path: dbPath}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// CreateHead inserts a new speaker.
func (s *Store) CreateHead(ctx context.Context, head *Head) (*Head, error) {
	if head == nil {
		return nil, errors.New("head is nil")
	}
	now := timestamp()
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO heads (name, voice_id, provider, speaking_style, speed, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		head.Name,
		nullableString(head.VoiceID),
		nullableString(head.Provider),
		nullableString(head.SpeakingStyle),
		head.Speed,
		now,
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert head: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetHead(ctx, id)
}

// GetHead fetches a speaker by identifier. Returns nil without error when
// the speaker does not exist.
func (s *Store) GetHead(ctx context.Context, id int64) (*Head, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, name, voice_id, provider, speaking_style, speed, created_at, updated_at
         FROM heads WHERE id = ?`,
		id,
	)
	return scanHead(row)
}

// HeadByName fetches a speaker by exact name.
func (s *Store) HeadByName(ctx context.Context, name string) (*Head, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, name, voice_id, provider, speaking_style, speed, created_at, updated_at
         FROM heads WHERE name = ?`,
		name,
	)
	return scanHead(row)
}

// ListHeads returns all speakers ordered by name.
func (s *Store) ListHeads(ctx context.Context) ([]*Head, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, name, voice_id, provider, speaking_style, speed, created_at, updated_at
         FROM heads ORDER BY name`,
	)
	if err != nil {
		return nil, fmt.Errorf("list heads: %w", err)
	}
	defer rows.Close()

	var heads []*Head
	for rows.Next() {
		head, err := scanHead(rows)
		if err != nil {
			return nil, err
		}
		heads = append(heads, head)
	}
	return heads, rows.Err()
}

func scanHead(scanner interface{ Scan(dest ...any) error }) (*Head, error) {
	var (
		head       Head
		voiceID    sql.NullString
		provider   sql.NullString
		style      sql.NullString
		createdRaw string
		updatedRaw string
	)
	err := scanner.Scan(&head.ID, &head.Name, &voiceID, &provider, &style, &head.Speed, &createdRaw, &updatedRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan head: %w", err)
	}
	head.VoiceID = voiceID.String
	head.Provider = provider.String
	head.SpeakingStyle = style.String
	if created, err := time.Parse(time.RFC3339Nano, createdRaw); err == nil {
		head.CreatedAt = created
	}
	if updated, err := time.Parse(time.RFC3339Nano, updatedRaw); err == nil {
		head.UpdatedAt = updated
	}
	return &head, nil
}

// CreateEpisode inserts a new draft episode.
func (s *Store) CreateEpisode(ctx context.Context, title string) (*Episode, error) {
	now := timestamp()
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO episodes (title, status, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		title,
		StatusDraft,
		now,
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert episode: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetEpisode(ctx, id)
}

// GetEpisode fetches an episode by identifier. Returns nil without error
// when the episode does not exist.
func (s *Store) GetEpisode(ctx context.Context, id int64) (*Episode, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, title, status, audio_url, created_at, updated_at FROM episodes WHERE id = ?`,
		id,
	)
	return scanEpisode(row)
}

// ListEpisodes returns all episodes, newest first.
func (s *Store) ListEpisodes(ctx context.Context) ([]*Episode, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, title, status, audio_url, created_at, updated_at FROM episodes ORDER BY id DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list episodes: %w", err)
	}
	defer rows.Close()

	var episodes []*Episode
	for rows.Next() {
		episode, err := scanEpisode(rows)
		if err != nil {
			return nil, err
		}
		episodes = append(episodes, episode)
	}
	return episodes, rows.Err()
}

// SetStatus updates an episode's lifecycle status.
func (s *Store) SetStatus(ctx context.Context, id int64, status Status) error {
	if _, ok := statusSet[status]; !ok {
		return fmt.Errorf("unknown episode status %q", status)
	}
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE episodes SET status = ?, updated_at = ? WHERE id = ?`,
		status,
		timestamp(),
		id,
	)
	if err != nil {
		return fmt.Errorf("update episode status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return services.Wrap(services.ErrNotFound, "episodes", "set-status", fmt.Sprintf("episode %d", id), nil)
	}
	return nil
}

// SetGenerated marks an episode generated and records the URL of its
// final audio asset in one update.
func (s *Store) SetGenerated(ctx context.Context, id int64, audioURL string) error {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE episodes SET status = ?, audio_url = ?, updated_at = ? WHERE id = ?`,
		StatusGenerated,
		nullableString(audioURL),
		timestamp(),
		id,
	)
	if err != nil {
		return fmt.Errorf("update episode audio url: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return services.Wrap(services.ErrNotFound, "episodes", "set-generated", fmt.Sprintf("episode %d", id), nil)
	}
	return nil
}

func scanEpisode(scanner interface{ Scan(dest ...any) error }) (*Episode, error) {
	var (
		episode    Episode
		statusStr  string
		audioURL   sql.NullString
		createdRaw string
		updatedRaw string
	)
	err := scanner.Scan(&episode.ID, &episode.Title, &statusStr, &audioURL, &createdRaw, &updatedRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan episode: %w", err)
	}
	episode.Status = Status(statusStr)
	episode.AudioURL = audioURL.String
	if created, err := time.Parse(time.RFC3339Nano, createdRaw); err == nil {
		episode.CreatedAt = created
	}
	if updated, err := time.Parse(time.RFC3339Nano, updatedRaw); err == nil {
		episode.UpdatedAt = updated
	}
	return &episode, nil
}

// AddTurn appends a turn to an episode at the next free position.
func (s *Store) AddTurn(ctx context.Context, episodeID, headID int64, text string, speed float64) (*Turn, error) {
	var next int
	if err := s.db.QueryRowContext(
		ctx,
		`SELECT COALESCE(MAX(position), -1) + 1 FROM turns WHERE episode_id = ?`,
		episodeID,
	).Scan(&next); err != nil {
		return nil, fmt.Errorf("next position: %w", err)
	}

	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO turns (episode_id, position, head_id, text, speed, created_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		episodeID,
		next,
		headID,
		text,
		speed,
		timestamp(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert turn: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, episode_id, position, head_id, text, speed, created_at FROM turns WHERE id = ?`,
		id,
	)
	return scanTurn(row)
}

// TurnsForEpisode returns an episode's turns in authored order.
func (s *Store) TurnsForEpisode(ctx context.Context, episodeID int64) ([]*Turn, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, episode_id, position, head_id, text, speed, created_at
         FROM turns WHERE episode_id = ? ORDER BY position`,
		episodeID,
	)
	if err != nil {
		return nil, fmt.Errorf("turns for episode: %w", err)
	}
	defer rows.Close()

	var turns []*Turn
	for rows.Next() {
		turn, err := scanTurn(rows)
		if err != nil {
			return nil, err
		}
		turns = append(turns, turn)
	}
	return turns, rows.Err()
}

func scanTurn(scanner interface{ Scan(dest ...any) error }) (*Turn, error) {
	var (
		turn       Turn
		createdRaw string
	)
	err := scanner.Scan(&turn.ID, &turn.EpisodeID, &turn.Position, &turn.HeadID, &turn.Text, &turn.Speed, &createdRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan turn: %w", err)
	}
	if created, err := time.Parse(time.RFC3339Nano, createdRaw); err == nil {
		turn.CreatedAt = created
	}
	return &turn, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
