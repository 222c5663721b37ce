package manuscript_test

import (
	"testing"

	"voicecast/internal/manuscript"
)

func sampleManuscript() *manuscript.Manuscript {
	return &manuscript.Manuscript{
		Version:   manuscript.Version,
		EpisodeID: 7,
		Title:     "Pilot",
		Segments: []manuscript.Segment{
			{Index: 0, HeadID: 1, HeadName: "Ada", VoiceID: "alloy", Provider: "openai", Text: "Hello there.", Speed: 1.0},
			{Index: 1, HeadID: 2, HeadName: "Ben", VoiceID: "onyx", Provider: "openai", Text: "Hi Ada.", Speed: 1.2},
		},
	}
}

func TestHashIsDeterministic(t *testing.T) {
	a := manuscript.Hash(sampleManuscript())
	b := manuscript.Hash(sampleManuscript())
	if a != b {
		t.Fatalf("same content produced different hashes: %s vs %s", a, b)
	}
	if len(a) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(a))
	}
}

func TestHashIgnoresPresentationFields(t *testing.T) {
	base := manuscript.Hash(sampleManuscript())

	renamed := sampleManuscript()
	renamed.Title = "Renamed"
	renamed.Segments[0].HeadName = "Augusta"
	renamed.Segments[0].Provider = "azure_openai"
	renamed.Segments[0].Index = 5
	if got := manuscript.Hash(renamed); got != base {
		t.Fatalf("presentation-only change altered hash")
	}
}

func TestHashTracksContentFields(t *testing.T) {
	base := manuscript.Hash(sampleManuscript())

	edited := sampleManuscript()
	edited.Segments[0].Text = "Hello there!"
	if manuscript.Hash(edited) == base {
		t.Fatalf("text edit did not alter hash")
	}

	revoiced := sampleManuscript()
	revoiced.Segments[1].VoiceID = "nova"
	if manuscript.Hash(revoiced) == base {
		t.Fatalf("voice change did not alter hash")
	}

	faster := sampleManuscript()
	faster.Segments[0].Speed = 1.5
	if manuscript.Hash(faster) == base {
		t.Fatalf("speed change did not alter hash")
	}
}

func TestHashTreatsZeroSpeedAsDefault(t *testing.T) {
	explicit := sampleManuscript()
	implicit := sampleManuscript()
	implicit.Segments[0].Speed = 0

	if manuscript.Hash(explicit) != manuscript.Hash(implicit) {
		t.Fatalf("zero speed should hash like the 1.0 default")
	}
}
