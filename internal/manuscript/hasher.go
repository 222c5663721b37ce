package manuscript

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// normalizedSegment is the projection of a segment that participates in the
// content fingerprint. Field order is fixed so the serialized form is
// canonical. Index, HeadName, and Provider are deliberately excluded:
// renaming a speaker or switching the backend must not invalidate audio
// that would come out identical.
type normalizedSegment struct {
	HeadID        int64   `json:"headId"`
	VoiceID       string  `json:"voiceId"`
	Text          string  `json:"text"`
	Speed         float64 `json:"speed"`
	SpeakingStyle string  `json:"speakingStyle"`
}

// Hash produces a deterministic SHA-256 fingerprint of the manuscript
// content. Used for idempotency: if the content hasn't changed, the
// scheduler won't create a second job and the runner refuses stale input.
func Hash(m *Manuscript) string {
	normalized := make([]normalizedSegment, 0, len(m.Segments))
	for _, segment := range m.Segments {
		speed := segment.Speed
		if speed == 0 {
			speed = 1.0
		}
		normalized = append(normalized, normalizedSegment{
			HeadID:        segment.HeadID,
			VoiceID:       segment.VoiceID,
			Text:          segment.Text,
			Speed:         speed,
			SpeakingStyle: segment.SpeakingStyle,
		})
	}

	// Struct field order fixes the key order, so marshaling is canonical.
	payload, err := json.Marshal(normalized)
	if err != nil {
		// Only unmarshalable types reach here; the projection is plain data.
		panic("manuscript: marshal normalized segments: " + err.Error())
	}

	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}
