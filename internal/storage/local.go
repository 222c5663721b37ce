package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"voicecast/internal/config"
	"voicecast/internal/services"
)

// Local stores audio on the daemon's filesystem and serves it from the
// API server's /media route.
type Local struct {
	root    string
	baseURL string
}

// NewLocal builds a filesystem backend from configuration.
func NewLocal(cfg *config.Config) (*Local, error) {
	if cfg.Paths.StorageDir == "" {
		return nil, services.Wrap(services.ErrConfiguration, "storage", "init", "storage directory not configured", nil)
	}
	if err := os.MkdirAll(cfg.Paths.StorageDir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrStorage, "storage", "init", "create storage directory", err)
	}
	return &Local{
		root:    cfg.Paths.StorageDir,
		baseURL: strings.TrimRight(cfg.Paths.StorageBaseURL, "/"),
	}, nil
}

// Root returns the backing directory.
func (l *Local) Root() string {
	return l.root
}

// Store moves srcPath into the storage root under name. A rename is tried
// first; cross-device moves fall back to copy and remove.
func (l *Local) Store(ctx context.Context, srcPath, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	dst := filepath.Join(l.root, filepath.Clean("/"+name))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", services.Wrap(services.ErrStorage, "storage", "store", "create parent directory", err)
	}

	if err := os.Rename(srcPath, dst); err == nil {
		return dst, nil
	}

	in, err := os.Open(srcPath)
	if err != nil {
		return "", services.Wrap(services.ErrStorage, "storage", "store", "open source", err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return "", services.Wrap(services.ErrStorage, "storage", "store", "create destination", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return "", services.Wrap(services.ErrStorage, "storage", "store", "copy file", err)
	}
	if err := out.Sync(); err != nil {
		return "", services.Wrap(services.ErrStorage, "storage", "store", "sync destination", err)
	}
	_ = os.Remove(srcPath)
	return dst, nil
}

// URL returns the public address for a stored name.
func (l *Local) URL(name string) string {
	cleaned := strings.TrimLeft(filepath.ToSlash(filepath.Clean("/"+name)), "/")
	if l.baseURL == "" {
		return cleaned
	}
	return fmt.Sprintf("%s/%s", l.baseURL, cleaned)
}

// Delete removes a stored name. Missing files are not an error.
func (l *Local) Delete(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	target := filepath.Join(l.root, filepath.Clean("/"+name))
	if err := os.Remove(target); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return services.Wrap(services.ErrStorage, "storage", "delete", "remove file", err)
	}
	return nil
}
