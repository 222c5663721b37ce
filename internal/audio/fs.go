package audio

import (
	"fmt"
	"io"
	"os"
)

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create destination: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("copy: %w", err)
	}
	return out.Sync()
}

// EstimateDurationMS approximates playback length from file size assuming
// the 192 kbps ceiling providers emit. Good enough for progress display
// and feed metadata; exact timing would require decoding.
func EstimateDurationMS(sizeBytes int64) int64 {
	if sizeBytes <= 0 {
		return 0
	}
	return sizeBytes * 1000 / 24000
}
