// Package audio assembles per-segment speech chunks into a single episode
// file. When an ffmpeg binary is configured it is used for concatenation,
// transcoding, and loudness normalization; without one a pure-Go MP3
// concatenation fallback keeps the pipeline functional.
package audio

import (
	"fmt"
	"strings"
)

// Format identifies a supported output container.
type Format string

const (
	FormatMP3 Format = "mp3"
	FormatAAC Format = "aac"
	FormatWAV Format = "wav"
)

// ParseFormat converts a string into a known Format.
func ParseFormat(value string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(value))) {
	case FormatMP3:
		return FormatMP3, nil
	case FormatAAC:
		return FormatAAC, nil
	case FormatWAV:
		return FormatWAV, nil
	default:
		return "", fmt.Errorf("unsupported audio format %q", value)
	}
}

// Codec returns the ffmpeg encoder name for this format.
func (f Format) Codec() string {
	switch f {
	case FormatAAC:
		return "aac"
	case FormatWAV:
		return "pcm_s16le"
	default:
		return "libmp3lame"
	}
}

// Extension returns the file extension without a leading dot.
func (f Format) Extension() string {
	return string(f)
}

// MIMEType returns the media type served for files in this format.
func (f Format) MIMEType() string {
	switch f {
	case FormatAAC:
		return "audio/aac"
	case FormatWAV:
		return "audio/wav"
	default:
		return "audio/mpeg"
	}
}
