package manuscript

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Limits bounds what a schedulable manuscript may contain.
type Limits struct {
	MaxSegments     int
	MaxSegmentChars int
}

// Validate checks a manuscript against the provided limits and returns
// every violation as a human-readable message. Callers surface the whole
// list, not just the first problem. An empty slice means valid.
func Validate(m *Manuscript, limits Limits) []string {
	var errs []string

	if m == nil || len(m.Segments) == 0 {
		errs = append(errs, "episode must have at least one turn")
		return errs
	}

	if limits.MaxSegments > 0 && len(m.Segments) > limits.MaxSegments {
		errs = append(errs, fmt.Sprintf("episode has %d segments (max %d)", len(m.Segments), limits.MaxSegments))
	}

	for i, segment := range m.Segments {
		if segment.HeadID <= 0 {
			errs = append(errs, fmt.Sprintf("segment %d has no speaker assigned", i+1))
		}

		text := strings.TrimSpace(segment.Text)
		if text == "" {
			errs = append(errs, fmt.Sprintf("segment %d has no text", i+1))
		}

		if limits.MaxSegmentChars > 0 && utf8.RuneCountInString(text) > limits.MaxSegmentChars {
			errs = append(errs, fmt.Sprintf("segment %d exceeds %d characters", i+1, limits.MaxSegmentChars))
		}

		if segment.Speed != 0 && (segment.Speed < 0.25 || segment.Speed > 4.0) {
			errs = append(errs, fmt.Sprintf("segment %d speed %.2f is outside 0.25-4.0", i+1, segment.Speed))
		}
	}

	return errs
}
