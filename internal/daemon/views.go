package daemon

import (
	"time"

	"voicecast/internal/jobs"
)

// JobView is the JSON shape the API and CLI share for jobs.
type JobView struct {
	ID                int64      `json:"id"`
	EpisodeID         int64      `json:"episodeId"`
	Status            string     `json:"status"`
	ManuscriptHash    string     `json:"manuscriptHash"`
	TotalSegments     int        `json:"totalSegments"`
	CompletedSegments int        `json:"completedSegments"`
	Progress          int        `json:"progress"`
	ErrorMessage      string     `json:"errorMessage,omitempty"`
	RetryCount        int        `json:"retryCount"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
	StartedAt         *time.Time `json:"startedAt,omitempty"`
	CompletedAt       *time.Time `json:"completedAt,omitempty"`
}

// AssetView is the JSON shape for generated audio files.
type AssetView struct {
	ID           int64  `json:"id"`
	Type         string `json:"type"`
	SegmentIndex int    `json:"segmentIndex"`
	URL          string `json:"url,omitempty"`
	MIMEType     string `json:"mimeType,omitempty"`
	SizeBytes    int64  `json:"sizeBytes"`
	DurationMS   int64  `json:"durationMs"`
}

// JobResponse wraps a single job plus its assets.
type JobResponse struct {
	Job    JobView     `json:"job"`
	Assets []AssetView `json:"assets,omitempty"`
}

// JobListResponse wraps a job listing.
type JobListResponse struct {
	Jobs []JobView `json:"jobs"`
}

// ScheduleResponse reports the outcome of a generation request.
type ScheduleResponse struct {
	Job     JobView `json:"job"`
	Message string  `json:"message,omitempty"`
}

// ErrorResponse carries a failure message, optionally with the full list
// of validation problems.
type ErrorResponse struct {
	Error    string   `json:"error"`
	Problems []string `json:"problems,omitempty"`
}

// FromJob converts a stored job into its API view.
func FromJob(job *jobs.Job) JobView {
	return JobView{
		ID:                job.ID,
		EpisodeID:         job.EpisodeID,
		Status:            string(job.Status),
		ManuscriptHash:    job.ManuscriptHash,
		TotalSegments:     job.TotalSegments,
		CompletedSegments: job.CompletedSegments,
		Progress:          job.Progress,
		ErrorMessage:      job.ErrorMessage,
		RetryCount:        job.RetryCount,
		CreatedAt:         job.CreatedAt,
		UpdatedAt:         job.UpdatedAt,
		StartedAt:         job.StartedAt,
		CompletedAt:       job.CompletedAt,
	}
}

// FromAsset converts a stored asset into its API view.
func FromAsset(asset *jobs.Asset) AssetView {
	return AssetView{
		ID:           asset.ID,
		Type:         string(asset.Type),
		SegmentIndex: asset.SegmentIndex,
		URL:          asset.URL,
		MIMEType:     asset.MIMEType,
		SizeBytes:    asset.SizeBytes,
		DurationMS:   asset.DurationMS,
	}
}
