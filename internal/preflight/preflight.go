// Package preflight verifies the daemon's runtime dependencies before the
// pipeline accepts work.
package preflight

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"voicecast/internal/config"
)

// minFreeBytes is the storage headroom required to start: enough for
// several full-length episodes plus working copies.
const minFreeBytes = 512 << 20

// Check describes one verified dependency.
type Check struct {
	Name   string
	Passed bool
	Detail string
}

// Run executes every check and returns the results plus an overall
// verdict. Only hard failures (unwritable storage, no disk space) make
// the verdict false; a missing ffmpeg downgrades features but does not
// block startup.
func Run(cfg *config.Config) ([]Check, bool) {
	checks := []Check{
		checkFFmpeg(cfg),
		checkStorageWritable(cfg),
		checkDiskSpace(cfg),
	}

	ok := true
	for _, check := range checks {
		if !check.Passed && check.Name != "ffmpeg" {
			ok = false
		}
	}
	return checks, ok
}

func checkFFmpeg(cfg *config.Config) Check {
	path, ok := cfg.FFmpeg()
	if path == "" {
		return Check{
			Name:   "ffmpeg",
			Passed: false,
			Detail: "not configured; using built-in MP3 concatenation (no transcoding or loudness normalization)",
		}
	}
	if !ok {
		return Check{
			Name:   "ffmpeg",
			Passed: false,
			Detail: fmt.Sprintf("%s is not an executable file", path),
		}
	}
	return Check{Name: "ffmpeg", Passed: true, Detail: path}
}

func checkStorageWritable(cfg *config.Config) Check {
	if err := os.MkdirAll(cfg.Paths.StorageDir, 0o755); err != nil {
		return Check{Name: "storage", Passed: false, Detail: fmt.Sprintf("create %s: %v", cfg.Paths.StorageDir, err)}
	}
	probe := filepath.Join(cfg.Paths.StorageDir, ".preflight")
	if err := os.WriteFile(probe, []byte("ok"), 0o644); err != nil {
		return Check{Name: "storage", Passed: false, Detail: fmt.Sprintf("write probe: %v", err)}
	}
	_ = os.Remove(probe)
	return Check{Name: "storage", Passed: true, Detail: cfg.Paths.StorageDir}
}

func checkDiskSpace(cfg *config.Config) Check {
	var stat unix.Statfs_t
	if err := unix.Statfs(cfg.Paths.StorageDir, &stat); err != nil {
		return Check{Name: "disk-space", Passed: false, Detail: fmt.Sprintf("statfs: %v", err)}
	}
	free := stat.Bavail * uint64(stat.Bsize)
	if free < minFreeBytes {
		return Check{
			Name:   "disk-space",
			Passed: false,
			Detail: fmt.Sprintf("%d MiB free, need at least %d MiB", free>>20, int64(minFreeBytes)>>20),
		}
	}
	return Check{Name: "disk-space", Passed: true, Detail: fmt.Sprintf("%d MiB free", free>>20)}
}
