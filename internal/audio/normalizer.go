package audio

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"voicecast/internal/services"
)

// Normalizer applies EBU R128 loudness normalization via ffmpeg's
// loudnorm filter. Without ffmpeg it copies the input unchanged.
type Normalizer struct {
	ffmpegPath string
	targetLUFS float64
}

// NewNormalizer builds a normalizer targeting the given integrated
// loudness in LUFS.
func NewNormalizer(ffmpegPath string, targetLUFS float64) *Normalizer {
	return &Normalizer{ffmpegPath: strings.TrimSpace(ffmpegPath), targetLUFS: targetLUFS}
}

// Normalize rewrites src into dst at the target loudness.
func (n *Normalizer) Normalize(ctx context.Context, src, dst string, format Format, bitrate string) error {
	if n.ffmpegPath == "" {
		if err := copyFile(src, dst); err != nil {
			return services.Wrap(services.ErrStorage, "audio", "normalize", "copy fallback", err)
		}
		return nil
	}

	if bitrate == "" {
		bitrate = "192k"
	}
	filter := fmt.Sprintf("loudnorm=I=%.1f:TP=-1.5:LRA=11", n.targetLUFS)
	args := []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-i", src,
		"-af", filter,
		"-c:a", format.Codec(), "-b:a", bitrate,
		"-ar", "44100", "-ac", "1",
		dst,
	}
	cmd := exec.CommandContext(ctx, n.ffmpegPath, args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		return services.Wrap(services.ErrEncoding, "audio", "normalize",
			fmt.Sprintf("ffmpeg loudnorm failed: %s", strings.TrimSpace(string(output))), err)
	}
	return nil
}
