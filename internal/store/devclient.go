package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"avoitenko/liftlog/internal/config"
	"avoitenko/liftlog/internal/domain"
)

// DevDocument is the flat combined shape served by the local-development
// data endpoint: every exercise and every workout in one document.
type DevDocument struct {
	Exercises []domain.Exercise `json:"exercises"`
	Workouts  []domain.Workout  `json:"workouts"`
}

// devVersion is the fixed token the dev backend hands out. The dev variant
// has no conflict detection: last write wins.
const devVersion = "dev"

// devStore implements the FileStore interface against the local dev server
// (GET/POST /api/dev-data). File paths are projected onto slices of the
// combined document.
type devStore struct {
	client  *http.Client
	baseURL string
}

// NewDevStore creates a FileStore talking to a local dev-data endpoint.
func NewDevStore(cfg config.DevConfig) FileStore {
	return &devStore{
		client:  &http.Client{Timeout: 10 * time.Second},
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
	}
}

func (s *devStore) fetch(ctx context.Context) (*DevDocument, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/api/dev-data", nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var doc DevDocument
		if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
			return nil, fmt.Errorf("dev: decode dev-data: %w", err)
		}
		return &doc, nil
	case http.StatusNotFound:
		return nil, ErrNotFound
	default:
		return nil, fmt.Errorf("dev: get dev-data: unexpected status %d", resp.StatusCode)
	}
}

func (s *devStore) push(ctx context.Context, doc *DevDocument) error {
	payload, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/api/dev-data", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("dev: post dev-data: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// GetFile projects the requested path out of the combined document.
func (s *devStore) GetFile(ctx context.Context, path string) (*File, error) {
	doc, err := s.fetch(ctx)
	if err != nil {
		return nil, err
	}

	var content any
	switch {
	case path == ExercisesPath:
		content = domain.ExerciseFile{Exercises: doc.Exercises}
	default:
		key := MonthKeyFromName(strings.TrimPrefix(path, DataDir+"/"))
		if key == "" {
			return nil, ErrNotFound
		}
		monthly := filterMonth(doc.Workouts, key)
		if len(monthly) == 0 {
			return nil, ErrNotFound
		}
		content = domain.WorkoutFile{Workouts: monthly}
	}

	raw, err := json.Marshal(content)
	if err != nil {
		return nil, err
	}
	return &File{Content: raw, Version: devVersion}, nil
}

// PutFile splices the written file back into the combined document and
// overwrites it wholesale. expectedVersion is ignored: no versioning here.
func (s *devStore) PutFile(ctx context.Context, path string, content []byte, message, expectedVersion string) (string, error) {
	doc, err := s.fetch(ctx)
	if err != nil && err != ErrNotFound {
		return "", err
	}
	if doc == nil {
		doc = &DevDocument{}
	}

	switch {
	case path == ExercisesPath:
		var ef domain.ExerciseFile
		if err := json.Unmarshal(content, &ef); err != nil {
			return "", fmt.Errorf("dev: put %s: %w", path, err)
		}
		doc.Exercises = ef.Exercises
	default:
		key := MonthKeyFromName(strings.TrimPrefix(path, DataDir+"/"))
		if key == "" {
			return "", fmt.Errorf("dev: put %s: not a data file", path)
		}
		var wf domain.WorkoutFile
		if err := json.Unmarshal(content, &wf); err != nil {
			return "", fmt.Errorf("dev: put %s: %w", path, err)
		}
		kept := make([]domain.Workout, 0, len(doc.Workouts))
		for _, w := range doc.Workouts {
			if domain.MonthKey(w.Date) != key {
				kept = append(kept, w)
			}
		}
		doc.Workouts = append(kept, wf.Workouts...)
	}

	if err := s.push(ctx, doc); err != nil {
		return "", err
	}
	return devVersion, nil
}

// ListFiles synthesizes a directory listing from the months present in the
// combined document.
func (s *devStore) ListFiles(ctx context.Context, dir string) ([]FileInfo, error) {
	if dir != DataDir {
		return nil, nil
	}
	doc, err := s.fetch(ctx)
	if err == ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	months := map[string]bool{}
	for _, w := range doc.Workouts {
		months[domain.MonthKey(w.Date)] = true
	}

	infos := []FileInfo{{Name: "exercises.json", Path: ExercisesPath}}
	keys := make([]string, 0, len(months))
	for k := range months {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		infos = append(infos, FileInfo{
			Name: fmt.Sprintf("workouts-%s.json", k),
			Path: MonthFilePath(k),
		})
	}
	return infos, nil
}

func filterMonth(workouts []domain.Workout, key string) []domain.Workout {
	out := make([]domain.Workout, 0)
	for _, w := range workouts {
		if domain.MonthKey(w.Date) == key {
			out = append(out, w)
		}
	}
	return out
}
