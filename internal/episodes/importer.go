package episodes

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"voicecast/internal/services"
)

// ScriptHead describes a speaker in an importable script file.
type ScriptHead struct {
	Name          string  `json:"name"`
	VoiceID       string  `json:"voiceId"`
	Provider      string  `json:"provider"`
	SpeakingStyle string  `json:"speakingStyle"`
	Speed         float64 `json:"speed"`
}

// ScriptTurn describes one line of dialogue in an importable script file.
// Head references a ScriptHead by name.
type ScriptTurn struct {
	Head  string  `json:"head"`
	Text  string  `json:"text"`
	Speed float64 `json:"speed"`
}

// Script is the JSON document accepted by Import.
type Script struct {
	Title string       `json:"title"`
	Heads []ScriptHead `json:"heads"`
	Turns []ScriptTurn `json:"turns"`
}

// Import reads a JSON script and persists it as a new episode. Heads are
// matched by name against existing speakers and created when missing, so
// repeated imports reuse the same speaker rows.
func (s *Store) Import(ctx context.Context, r io.Reader) (*Episode, error) {
	var script Script
	decoder := json.NewDecoder(r)
	if err := decoder.Decode(&script); err != nil {
		return nil, services.Wrap(services.ErrValidation, "episodes", "import", "parse script", err)
	}

	script.Title = strings.TrimSpace(script.Title)
	if script.Title == "" {
		return nil, services.Wrap(services.ErrValidation, "episodes", "import", "script has no title", nil)
	}
	if len(script.Turns) == 0 {
		return nil, services.Wrap(services.ErrValidation, "episodes", "import", "script has no turns", nil)
	}

	headsByName := make(map[string]*Head, len(script.Heads))
	for _, sh := range script.Heads {
		name := strings.TrimSpace(sh.Name)
		if name == "" {
			return nil, services.Wrap(services.ErrValidation, "episodes", "import", "head has no name", nil)
		}
		existing, err := s.HeadByName(ctx, name)
		if err != nil {
			return nil, services.Wrap(services.ErrStorage, "episodes", "import", "look up head", err)
		}
		if existing != nil {
			headsByName[name] = existing
			continue
		}
		created, err := s.CreateHead(ctx, &Head{
			Name:          name,
			VoiceID:       strings.TrimSpace(sh.VoiceID),
			Provider:      strings.TrimSpace(sh.Provider),
			SpeakingStyle: strings.TrimSpace(sh.SpeakingStyle),
			Speed:         sh.Speed,
		})
		if err != nil {
			return nil, services.Wrap(services.ErrStorage, "episodes", "import", "create head", err)
		}
		headsByName[name] = created
	}

	episode, err := s.CreateEpisode(ctx, script.Title)
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, "episodes", "import", "create episode", err)
	}

	for i, st := range script.Turns {
		var headID int64
		if name := strings.TrimSpace(st.Head); name != "" {
			head, ok := headsByName[name]
			if !ok {
				head, err = s.HeadByName(ctx, name)
				if err != nil {
					return nil, services.Wrap(services.ErrStorage, "episodes", "import", "look up head", err)
				}
				headsByName[name] = head
			}
			if head == nil {
				return nil, services.Wrap(services.ErrValidation, "episodes", "import",
					fmt.Sprintf("turn %d references unknown head %q", i+1, name), nil)
			}
			headID = head.ID
		}
		if _, err := s.AddTurn(ctx, episode.ID, headID, st.Text, st.Speed); err != nil {
			return nil, services.Wrap(services.ErrStorage, "episodes", "import", "add turn", err)
		}
	}

	if err := s.SetStatus(ctx, episode.ID, StatusReady); err != nil {
		return nil, err
	}
	return s.GetEpisode(ctx, episode.ID)
}
