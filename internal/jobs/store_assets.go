package jobs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const assetColumns = "id, job_id, episode_id, asset_type, segment_index, path, url, mime_type, size_bytes, duration_ms, created_at"

func scanAsset(scanner interface{ Scan(dest ...any) error }) (*Asset, error) {
	var (
		id           int64
		jobID        int64
		episodeID    int64
		assetType    string
		segmentIndex int
		path         string
		url          sql.NullString
		mimeType     sql.NullString
		sizeBytes    int64
		durationMS   int64
		createdRaw   sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&jobID,
		&episodeID,
		&assetType,
		&segmentIndex,
		&path,
		&url,
		&mimeType,
		&sizeBytes,
		&durationMS,
		&createdRaw,
	); err != nil {
		return nil, err
	}

	asset := &Asset{
		ID:           id,
		JobID:        jobID,
		EpisodeID:    episodeID,
		Type:         AssetType(assetType),
		SegmentIndex: segmentIndex,
		Path:         path,
		URL:          url.String,
		MIMEType:     mimeType.String,
		SizeBytes:    sizeBytes,
		DurationMS:   durationMS,
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		asset.CreatedAt = created
	}
	return asset, nil
}

// CreateAsset records an audio file produced by a job. Final assets use a
// segment index of -1.
func (s *Store) CreateAsset(ctx context.Context, asset *Asset) (*Asset, error) {
	if asset == nil {
		return nil, errors.New("asset is nil")
	}
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)

	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO audio_assets (
            job_id, episode_id, asset_type, segment_index, path, url,
            mime_type, size_bytes, duration_ms, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		asset.JobID,
		asset.EpisodeID,
		asset.Type,
		asset.SegmentIndex,
		asset.Path,
		nullableString(asset.URL),
		nullableString(asset.MIMEType),
		asset.SizeBytes,
		asset.DurationMS,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert asset: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetAsset(ctx, id)
}

// GetAsset fetches an asset by identifier. Returns nil without error when
// the asset does not exist.
func (s *Store) GetAsset(ctx context.Context, id int64) (*Asset, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+assetColumns+` FROM audio_assets WHERE id = ?`, id)
	asset, err := scanAsset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get asset: %w", err)
	}
	return asset, nil
}

// AssetsForJob returns every asset a job produced, chunks in segment order
// followed by the final output.
func (s *Store) AssetsForJob(ctx context.Context, jobID int64) ([]*Asset, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+assetColumns+` FROM audio_assets WHERE job_id = ? ORDER BY asset_type, segment_index`,
		jobID,
	)
	if err != nil {
		return nil, fmt.Errorf("assets for job: %w", err)
	}
	defer rows.Close()

	var assets []*Asset
	for rows.Next() {
		asset, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}
		assets = append(assets, asset)
	}
	return assets, rows.Err()
}

// FinalAssetForEpisode returns the newest final output for an episode.
func (s *Store) FinalAssetForEpisode(ctx context.Context, episodeID int64) (*Asset, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+assetColumns+` FROM audio_assets
         WHERE episode_id = ? AND asset_type = ? ORDER BY id DESC LIMIT 1`,
		episodeID,
		AssetFinal,
	)
	asset, err := scanAsset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("final asset for episode: %w", err)
	}
	return asset, nil
}

// DeleteAssetsForJob removes asset rows for a job, typically after a retry
// superseded its output.
func (s *Store) DeleteAssetsForJob(ctx context.Context, jobID int64) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM audio_assets WHERE job_id = ?`, jobID)
	if err != nil {
		return 0, fmt.Errorf("delete assets: %w", err)
	}
	return res.RowsAffected()
}
