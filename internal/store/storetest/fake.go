// Package storetest provides an in-memory FileStore with the same
// optimistic-concurrency behaviour as the real backends, plus call counters
// so tests can assert how many round-trips an operation cost.
package storetest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"avoitenko/liftlog/internal/store"
)

type fakeFile struct {
	content []byte
	version int
}

// FakeStore implements store.FileStore in memory.
type FakeStore struct {
	mu    sync.Mutex
	files map[string]fakeFile

	GetCalls  map[string]int
	PutCalls  map[string]int
	ListCalls int

	// FailNextPut makes the next PutFile fail with the given error.
	FailNextPut error
	// FailNextGet makes the next GetFile fail with the given error.
	FailNextGet error
}

// NewFakeStore creates an empty fake.
func NewFakeStore() *FakeStore {
	return &FakeStore{
		files:    map[string]fakeFile{},
		GetCalls: map[string]int{},
		PutCalls: map[string]int{},
	}
}

// Seed places a file directly, bypassing version checks.
func (f *FakeStore) Seed(path string, content []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	prev := f.files[path]
	f.files[path] = fakeFile{content: content, version: prev.version + 1}
}

// Version returns the current version token of path, or "".
func (f *FakeStore) Version(path string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	file, ok := f.files[path]
	if !ok {
		return ""
	}
	return versionToken(path, file.version)
}

// Content returns the current raw content of path.
func (f *FakeStore) Content(path string) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.files[path].content
}

// TotalGetCalls sums GetFile calls across all paths.
func (f *FakeStore) TotalGetCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.GetCalls {
		total += n
	}
	return total
}

func (f *FakeStore) GetFile(ctx context.Context, path string) (*store.File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.GetCalls[path]++

	if f.FailNextGet != nil {
		err := f.FailNextGet
		f.FailNextGet = nil
		return nil, err
	}

	file, ok := f.files[path]
	if !ok {
		return nil, store.ErrNotFound
	}
	content := make([]byte, len(file.content))
	copy(content, file.content)
	return &store.File{Content: content, Version: versionToken(path, file.version)}, nil
}

func (f *FakeStore) PutFile(ctx context.Context, path string, content []byte, message, expectedVersion string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.PutCalls[path]++

	if f.FailNextPut != nil {
		err := f.FailNextPut
		f.FailNextPut = nil
		return "", err
	}

	file, exists := f.files[path]
	switch {
	case expectedVersion == "" && exists:
		return "", store.ErrConflict
	case expectedVersion != "" && (!exists || expectedVersion != versionToken(path, file.version)):
		return "", store.ErrConflict
	}

	next := fakeFile{content: append([]byte(nil), content...), version: file.version + 1}
	f.files[path] = next
	return versionToken(path, next.version), nil
}

func (f *FakeStore) ListFiles(ctx context.Context, dir string) ([]store.FileInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ListCalls++

	prefix := strings.TrimSuffix(dir, "/") + "/"
	infos := make([]store.FileInfo, 0)
	for path := range f.files {
		if !strings.HasPrefix(path, prefix) {
			continue
		}
		name := strings.TrimPrefix(path, prefix)
		if strings.Contains(name, "/") {
			continue
		}
		infos = append(infos, store.FileInfo{Name: name, Path: path})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, nil
}

func versionToken(path string, version int) string {
	return fmt.Sprintf("%s@v%d", path, version)
}
