package store

import (
	"context"
	"fmt"
	"regexp"
)

// Error constants for the store layer. Callers branch on these to decide
// between "treat as empty", "refresh and retry" and "re-prompt for token".
var (
	// ErrNotFound means the file does not exist yet. Not a failure: readers
	// treat it as an empty collection.
	ErrNotFound = StoreError("file not found")

	// ErrConflict means the version token presented on a write was stale.
	// Never auto-retried; the caller must reload and try again.
	ErrConflict = StoreError("file changed elsewhere, refresh and retry")

	// ErrAuthFailed means the bearer credential was rejected. The stored
	// credential should be cleared so the next operation re-prompts.
	ErrAuthFailed = StoreError("authentication failed")
)

// StoreError helps distinguish store errors.
type StoreError string

func (e StoreError) Error() string {
	return string(e)
}

// NetworkError wraps a transport-level failure so callers can tell it apart
// from the contract errors above.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %v", e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// File is a fetched document plus the opaque version token a later write
// must present.
type File struct {
	Content []byte
	Version string
}

// FileInfo is one directory-listing entry.
type FileInfo struct {
	Name string
	Path string
}

// FileStore is the versioned file-store contract every backend implements.
type FileStore interface {
	// GetFile fetches and decodes the document at path. A missing path
	// reports ErrNotFound, not a hard error.
	GetFile(ctx context.Context, path string) (*File, error)

	// PutFile writes content at path. A non-empty expectedVersion must match
	// the store's current token or the write fails with ErrConflict. An
	// empty expectedVersion creates the file, failing with ErrConflict if
	// one now exists. Returns the new version token.
	PutFile(ctx context.Context, path string, content []byte, message, expectedVersion string) (string, error)

	// ListFiles lists the entries directly under dir. A missing directory
	// reports an empty listing.
	ListFiles(ctx context.Context, dir string) ([]FileInfo, error)
}

// TokenValidator is implemented by backends whose credential can be checked
// against a "who am I" endpoint before being trusted for data calls.
type TokenValidator interface {
	ValidateToken(ctx context.Context) error
}

// Data layout inside the backing store.
const (
	DataDir       = "data"
	ExercisesPath = "data/exercises.json"
)

var monthFilePattern = regexp.MustCompile(`^workouts-(\d{4}-\d{2})\.json$`)

// MonthFilePath returns the shard path for a YYYY-MM month key.
func MonthFilePath(monthKey string) string {
	return fmt.Sprintf("%s/workouts-%s.json", DataDir, monthKey)
}

// MonthKeyFromName extracts the YYYY-MM key from a month-file name, or ""
// if the name is not a workout shard.
func MonthKeyFromName(name string) string {
	m := monthFilePattern.FindStringSubmatch(name)
	if m == nil {
		return ""
	}
	return m[1]
}
