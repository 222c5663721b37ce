package jobs

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a generation job.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusCanceled  Status = "canceled"
)

var allStatuses = []Status{
	StatusQueued,
	StatusRunning,
	StatusSucceeded,
	StatusFailed,
	StatusCanceled,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsTerminal reports whether a job in this status will never run again.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusCanceled:
		return true
	default:
		return false
	}
}

// IsRetryable reports whether a new job may be scheduled from this one.
// Only failed jobs qualify; succeeded and canceled jobs need a fresh
// generation request instead.
func (s Status) IsRetryable() bool {
	return s == StatusFailed
}

// Job represents one audio generation run persisted in SQLite. The
// manuscript snapshot is frozen at scheduling time so later edits to the
// episode cannot change what an in-flight job produces.
type Job struct {
	ID                int64
	EpisodeID         int64
	Status            Status
	ManuscriptHash    string
	ManuscriptJSON    string
	TotalSegments     int
	CompletedSegments int
	Progress          int
	ErrorMessage      string
	RetryCount        int
	CreatedAt         time.Time
	UpdatedAt         time.Time
	StartedAt         *time.Time
	CompletedAt       *time.Time
}

// AssetType distinguishes intermediate per-segment audio from the
// stitched episode output.
type AssetType string

const (
	AssetChunk AssetType = "chunk"
	AssetFinal AssetType = "final"
)

// Asset represents an audio file produced by a job.
type Asset struct {
	ID           int64
	JobID        int64
	EpisodeID    int64
	Type         AssetType
	SegmentIndex int
	Path         string
	URL          string
	MIMEType     string
	SizeBytes    int64
	DurationMS   int64
	CreatedAt    time.Time
}
