package audio

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"voicecast/internal/services"
)

// Encoder transcodes audio files to a target format and bitrate. Without
// ffmpeg it degrades to a byte copy, leaving the input format untouched.
type Encoder struct {
	ffmpegPath string
}

// NewEncoder builds an encoder around an optional ffmpeg binary.
func NewEncoder(ffmpegPath string) *Encoder {
	return &Encoder{ffmpegPath: strings.TrimSpace(ffmpegPath)}
}

// Available reports whether transcoding is actually possible.
func (e *Encoder) Available() bool {
	return e.ffmpegPath != ""
}

// Encode transcodes src into dst using the target format's codec. When no
// encoder binary is configured the source bytes are copied verbatim.
func (e *Encoder) Encode(ctx context.Context, src, dst string, format Format, bitrate string) error {
	if e.ffmpegPath == "" {
		if err := copyFile(src, dst); err != nil {
			return services.Wrap(services.ErrStorage, "audio", "encode", "copy fallback", err)
		}
		return nil
	}

	if bitrate == "" {
		bitrate = "192k"
	}
	args := []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-i", src,
		"-c:a", format.Codec(), "-b:a", bitrate,
		"-ar", "44100", "-ac", "1",
		dst,
	}
	cmd := exec.CommandContext(ctx, e.ffmpegPath, args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		return services.Wrap(services.ErrEncoding, "audio", "encode",
			fmt.Sprintf("ffmpeg failed: %s", strings.TrimSpace(string(output))), err)
	}
	return nil
}
