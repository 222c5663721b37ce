// Package storage abstracts where generated audio lives and how it is
// addressed publicly.
package storage

import "context"

// Backend stores generated audio files and maps them to serveable URLs.
type Backend interface {
	// Store moves a finished file from its working location into managed
	// storage under the given relative name and returns its final path.
	Store(ctx context.Context, srcPath, name string) (string, error)

	// URL returns the public address for a stored name.
	URL(name string) string

	// Delete removes a stored name. Missing files are not an error.
	Delete(ctx context.Context, name string) error

	// Root returns the backing directory for diagnostics and preflight.
	Root() string
}
