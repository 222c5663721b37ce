package audio

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"voicecast/internal/services"
)

// Constants for the pure-Go silence generator. A 128 kbps, 44100 Hz mono
// MPEG-1 Layer III frame is 417 bytes and spans 1152 samples, which works
// out to about 26.122 ms per frame.
const (
	FrameSize       = 417
	FrameDurationMS = 26.122
)

// SilentFrameHeader is the 4-byte header of a 128 kbps 44100 Hz mono MP3
// frame; the remaining payload bytes are zero.
var SilentFrameHeader = []byte{0xFF, 0xFB, 0x90, 0xC4}

// StitchRequest describes one concatenation run.
type StitchRequest struct {
	ChunkPaths   []string
	OutputPath   string
	Format       Format
	Bitrate      string
	SilenceGapMS int
}

// Stitcher joins speech chunks into one episode file, inserting a silence
// gap between consecutive chunks (never after the last one).
type Stitcher struct {
	ffmpegPath string
}

// NewStitcher builds a stitcher. An empty ffmpeg path selects the pure-Go
// MP3 fallback, which neither transcodes nor resamples.
func NewStitcher(ffmpegPath string) *Stitcher {
	return &Stitcher{ffmpegPath: strings.TrimSpace(ffmpegPath)}
}

// Stitch concatenates the request's chunks into the output path.
func (s *Stitcher) Stitch(ctx context.Context, req StitchRequest) error {
	if len(req.ChunkPaths) == 0 {
		return services.Wrap(services.ErrValidation, "audio", "stitch", "no chunks to join", nil)
	}
	if err := os.MkdirAll(filepath.Dir(req.OutputPath), 0o755); err != nil {
		return services.Wrap(services.ErrStorage, "audio", "stitch", "create output directory", err)
	}

	// A lone chunk has no gap to insert, so it is copied verbatim and
	// never re-encoded, with or without ffmpeg.
	if len(req.ChunkPaths) == 1 {
		if err := copyFile(req.ChunkPaths[0], req.OutputPath); err != nil {
			return services.Wrap(services.ErrStorage, "audio", "stitch", "copy single chunk", err)
		}
		return nil
	}

	if s.ffmpegPath == "" {
		return s.stitchRaw(req)
	}
	return s.stitchFFmpeg(ctx, req)
}

// stitchRaw joins MP3 chunks byte-wise with generated silent frames. It
// only works when every chunk shares the 128 kbps 44100 Hz mono profile
// the providers emit, which is exactly what the pipeline requests when no
// encoder is available.
func (s *Stitcher) stitchRaw(req StitchRequest) error {
	if req.Format != FormatMP3 {
		return services.Wrap(services.ErrConfiguration, "audio", "stitch",
			fmt.Sprintf("format %q requires ffmpeg", req.Format), nil)
	}

	out, err := os.Create(req.OutputPath)
	if err != nil {
		return services.Wrap(services.ErrStorage, "audio", "stitch", "create output", err)
	}
	defer out.Close()

	silence := SilentChunk(req.SilenceGapMS)
	for i, chunkPath := range req.ChunkPaths {
		if i > 0 && len(silence) > 0 {
			if _, err := out.Write(silence); err != nil {
				return services.Wrap(services.ErrStorage, "audio", "stitch", "write silence", err)
			}
		}
		data, err := os.ReadFile(chunkPath)
		if err != nil {
			return services.Wrap(services.ErrStorage, "audio", "stitch", "read chunk", err)
		}
		if _, err := out.Write(data); err != nil {
			return services.Wrap(services.ErrStorage, "audio", "stitch", "write chunk", err)
		}
	}
	return out.Sync()
}

// SilentChunk returns raw MP3 frames covering at least the requested
// duration. Zero or negative durations yield nil.
func SilentChunk(durationMS int) []byte {
	if durationMS <= 0 {
		return nil
	}
	frames := int(math.Ceil(float64(durationMS) / FrameDurationMS))
	buf := make([]byte, frames*FrameSize)
	for i := 0; i < frames; i++ {
		copy(buf[i*FrameSize:], SilentFrameHeader)
	}
	return buf
}

func (s *Stitcher) stitchFFmpeg(ctx context.Context, req StitchRequest) error {
	workDir, err := os.MkdirTemp(filepath.Dir(req.OutputPath), "stitch-")
	if err != nil {
		return services.Wrap(services.ErrStorage, "audio", "stitch", "create work directory", err)
	}
	defer os.RemoveAll(workDir)

	var silencePath string
	if req.SilenceGapMS > 0 {
		silencePath = filepath.Join(workDir, "silence."+req.Format.Extension())
		if err := s.generateSilence(ctx, silencePath, req); err != nil {
			return err
		}
	}

	listPath := filepath.Join(workDir, "concat.txt")
	var list strings.Builder
	for i, chunkPath := range req.ChunkPaths {
		if i > 0 && silencePath != "" {
			fmt.Fprintf(&list, "file '%s'\n", escapeConcatPath(silencePath))
		}
		fmt.Fprintf(&list, "file '%s'\n", escapeConcatPath(chunkPath))
	}
	if err := os.WriteFile(listPath, []byte(list.String()), 0o644); err != nil {
		return services.Wrap(services.ErrStorage, "audio", "stitch", "write concat list", err)
	}

	bitrate := req.Bitrate
	if bitrate == "" {
		bitrate = "128k"
	}
	args := []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-f", "concat", "-safe", "0", "-i", listPath,
		"-c:a", req.Format.Codec(), "-b:a", bitrate,
		"-ar", "44100", "-ac", "1",
		req.OutputPath,
	}
	cmd := exec.CommandContext(ctx, s.ffmpegPath, args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		return services.Wrap(services.ErrEncoding, "audio", "stitch",
			fmt.Sprintf("ffmpeg concat failed: %s", strings.TrimSpace(string(output))), err)
	}
	return nil
}

func (s *Stitcher) generateSilence(ctx context.Context, path string, req StitchRequest) error {
	seconds := float64(req.SilenceGapMS) / 1000.0
	args := []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-f", "lavfi", "-i", "anullsrc=r=44100:cl=mono",
		"-t", fmt.Sprintf("%.3f", seconds),
		"-c:a", req.Format.Codec(), "-b:a", "128k",
		path,
	}
	cmd := exec.CommandContext(ctx, s.ffmpegPath, args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		return services.Wrap(services.ErrEncoding, "audio", "stitch",
			fmt.Sprintf("ffmpeg silence failed: %s", strings.TrimSpace(string(output))), err)
	}
	return nil
}

// escapeConcatPath escapes single quotes for the ffmpeg concat demuxer
// list format.
func escapeConcatPath(path string) string {
	return strings.ReplaceAll(path, "'", `'\''`)
}
