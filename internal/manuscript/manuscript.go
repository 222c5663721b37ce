// Package manuscript defines the validated unit of work for one episode:
// an ordered list of speaker turns, plus the fingerprinting and validation
// rules the job pipeline depends on.
package manuscript

// Version identifies the manuscript wire format.
const Version = "1.0"

// Segment is one speaker turn within a manuscript.
type Segment struct {
	Index         int     `json:"index"`
	HeadID        int64   `json:"headId"`
	HeadName      string  `json:"headName"`
	VoiceID       string  `json:"voiceId"`
	Provider      string  `json:"provider"`
	Text          string  `json:"text"`
	Speed         float64 `json:"speed"`
	SpeakingStyle string  `json:"speakingStyle"`
}

// Manuscript is the immutable snapshot of an episode's authored content.
// Segments carry a contiguous Index starting at 0.
type Manuscript struct {
	Version   string    `json:"version"`
	EpisodeID int64     `json:"episodeId"`
	Title     string    `json:"title"`
	Segments  []Segment `json:"segments"`
}
