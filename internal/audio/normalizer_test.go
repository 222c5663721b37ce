package audio_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"voicecast/internal/audio"
)

func TestNormalizerCopiesWithoutFFmpeg(t *testing.T) {
	dir := t.TempDir()
	data := []byte("stitched episode audio")
	src := writeChunk(t, dir, "final.mp3", data)
	dst := filepath.Join(dir, "normalized.mp3")

	norm := audio.NewNormalizer("", -16)
	if err := norm.Normalize(t.Context(), src, dst, audio.FormatMP3, "128k"); err != nil {
		t.Fatalf("normalize: %v", err)
	}

	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("copy fallback altered the bytes: %q", got)
	}
}
