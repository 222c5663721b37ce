package episodes

import (
	"strings"
	"time"
)

// Status represents the publication lifecycle of an episode.
type Status string

const (
	StatusDraft      Status = "draft"
	StatusReady      Status = "ready"
	StatusGenerating Status = "generating"
	StatusGenerated  Status = "generated"
	StatusFailed     Status = "failed"
)

var allStatuses = []Status{
	StatusDraft,
	StatusReady,
	StatusGenerating,
	StatusGenerated,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// Head is a named speaker with an assigned synthesis voice.
type Head struct {
	ID            int64
	Name          string
	VoiceID       string
	Provider      string
	SpeakingStyle string
	Speed         float64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Turn is one authored line of dialogue within an episode. A turn may
// override the speed of its head's voice; zero means inherit.
type Turn struct {
	ID        int64
	EpisodeID int64
	Position  int
	HeadID    int64
	Text      string
	Speed     float64
	CreatedAt time.Time
}

// Episode groups an ordered sequence of turns under a title. AudioURL is
// set once a generation job has produced a final asset.
type Episode struct {
	ID        int64
	Title     string
	Status    Status
	AudioURL  string
	CreatedAt time.Time
	UpdatedAt time.Time
}
