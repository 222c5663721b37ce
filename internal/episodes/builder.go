package episodes

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"

	"voicecast/internal/config"
	"voicecast/internal/manuscript"
	"voicecast/internal/services"
)

// Builder assembles manuscripts from stored episode content, filling in
// configured defaults for turns whose head does not pin a voice.
type Builder struct {
	store *Store
	cfg   *config.Config
}

// NewBuilder constructs a manuscript builder.
func NewBuilder(store *Store, cfg *config.Config) *Builder {
	return &Builder{store: store, cfg: cfg}
}

// BuildManuscript produces the manuscript snapshot for an episode. Every
// authored turn is included, even ones that would fail validation, so the
// validator can report the complete list of problems. Text is normalized
// to NFC so visually identical input hashes identically.
func (b *Builder) BuildManuscript(ctx context.Context, episodeID int64) (*manuscript.Manuscript, error) {
	episode, err := b.store.GetEpisode(ctx, episodeID)
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, "episodes", "build", "load episode", err)
	}
	if episode == nil {
		return nil, services.Wrap(services.ErrNotFound, "episodes", "build", fmt.Sprintf("episode %d", episodeID), nil)
	}

	turns, err := b.store.TurnsForEpisode(ctx, episodeID)
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, "episodes", "build", "load turns", err)
	}

	headCache := make(map[int64]*Head)
	segments := make([]manuscript.Segment, 0, len(turns))
	for i, turn := range turns {
		segment := manuscript.Segment{
			Index:    i,
			Text:     norm.NFC.String(strings.TrimSpace(turn.Text)),
			Provider: b.cfg.TTS.Provider,
			VoiceID:  b.cfg.TTS.DefaultVoice,
			Speed:    b.cfg.TTS.DefaultSpeed,
		}

		if turn.HeadID > 0 {
			head, ok := headCache[turn.HeadID]
			if !ok {
				head, err = b.store.GetHead(ctx, turn.HeadID)
				if err != nil {
					return nil, services.Wrap(services.ErrStorage, "episodes", "build", "load head", err)
				}
				headCache[turn.HeadID] = head
			}
			if head != nil {
				segment.HeadID = head.ID
				segment.HeadName = head.Name
				segment.SpeakingStyle = head.SpeakingStyle
				if head.VoiceID != "" {
					segment.VoiceID = head.VoiceID
				}
				if head.Provider != "" {
					segment.Provider = head.Provider
				}
				if head.Speed != 0 {
					segment.Speed = head.Speed
				}
			}
		}

		if turn.Speed != 0 {
			segment.Speed = turn.Speed
		}

		segments = append(segments, segment)
	}

	return &manuscript.Manuscript{
		Version:   manuscript.Version,
		EpisodeID: episode.ID,
		Title:     episode.Title,
		Segments:  segments,
	}, nil
}
