package store

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"avoitenko/liftlog/internal/config"
	"avoitenko/liftlog/internal/domain"

	"github.com/stretchr/testify/require"
)

// fakeGitHub is a minimal Contents API server: per-path content with an
// incrementing sha, 409 on stale sha, 422 on create-over-existing.
type fakeGitHub struct {
	t     *testing.T
	token string
	files map[string][]byte
	shas  map[string]int
}

func newFakeGitHub(t *testing.T) *fakeGitHub {
	return &fakeGitHub{t: t, token: "test-token", files: map[string][]byte{}, shas: map[string]int{}}
}

func (f *fakeGitHub) sha(path string) string {
	return fmt.Sprintf("sha-%s-%d", path, f.shas[path])
}

func (f *fakeGitHub) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+f.token {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.URL.Path == "/user" {
			w.WriteHeader(http.StatusOK)
			fmt.Fprint(w, `{"login":"tester"}`)
			return
		}

		path := strings.TrimPrefix(r.URL.Path, "/repos/owner/repo/contents/")
		switch r.Method {
		case http.MethodGet:
			f.get(w, path)
		case http.MethodPut:
			f.put(w, r, path)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})
}

func (f *fakeGitHub) get(w http.ResponseWriter, path string) {
	// Directory listing.
	if content, ok := f.files[path]; ok {
		// GitHub wraps base64 at 60 columns; emulate the newlines.
		encoded := base64.StdEncoding.EncodeToString(content)
		var wrapped strings.Builder
		for i := 0; i < len(encoded); i += 60 {
			end := i + 60
			if end > len(encoded) {
				end = len(encoded)
			}
			wrapped.WriteString(encoded[i:end])
			wrapped.WriteString("\n")
		}
		json.NewEncoder(w).Encode(map[string]any{
			"name":    path,
			"path":    path,
			"sha":     f.sha(path),
			"content": wrapped.String(),
		})
		return
	}

	prefix := path + "/"
	var entries []map[string]string
	for p := range f.files {
		if strings.HasPrefix(p, prefix) {
			entries = append(entries, map[string]string{
				"name": strings.TrimPrefix(p, prefix),
				"path": p,
				"type": "file",
			})
		}
	}
	if len(entries) == 0 {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	json.NewEncoder(w).Encode(entries)
}

func (f *fakeGitHub) put(w http.ResponseWriter, r *http.Request, path string) {
	var body struct {
		Message string `json:"message"`
		Content string `json:"content"`
		SHA     string `json:"sha"`
	}
	require.NoError(f.t, json.NewDecoder(r.Body).Decode(&body))

	_, exists := f.files[path]
	if !exists && body.SHA != "" {
		w.WriteHeader(http.StatusConflict)
		return
	}
	if exists {
		if body.SHA == "" {
			w.WriteHeader(http.StatusUnprocessableEntity)
			return
		}
		if body.SHA != f.sha(path) {
			w.WriteHeader(http.StatusConflict)
			return
		}
	}

	raw, err := base64.StdEncoding.DecodeString(body.Content)
	require.NoError(f.t, err)
	f.files[path] = raw
	f.shas[path]++

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]any{
		"content": map[string]string{"sha": f.sha(path)},
	})
}

func newTestStore(t *testing.T, f *fakeGitHub, opts ...GitHubOption) (FileStore, *httptest.Server) {
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)
	cfg := config.GitHubConfig{
		APIBase: srv.URL,
		Owner:   "owner",
		Repo:    "repo",
		Branch:  "main",
		Token:   "test-token",
	}
	return NewGitHubStore(cfg, opts...), srv
}

func TestGitHubStore_GetFile_DecodesWrappedBase64(t *testing.T) {
	gh := newFakeGitHub(t)
	gh.files["data/exercises.json"] = []byte(`{"exercises":[{"id":"1","name":"Squat"}]}`)
	gh.shas["data/exercises.json"] = 1
	s, _ := newTestStore(t, gh)

	file, err := s.GetFile(context.Background(), "data/exercises.json")
	require.NoError(t, err)
	require.Equal(t, "sha-data/exercises.json-1", file.Version)
	require.JSONEq(t, `{"exercises":[{"id":"1","name":"Squat"}]}`, string(file.Content))
}

func TestGitHubStore_GetFile_MissingIsNotFound(t *testing.T) {
	s, _ := newTestStore(t, newFakeGitHub(t))

	_, err := s.GetFile(context.Background(), "data/workouts-2020-01.json")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestGitHubStore_RoundTrip(t *testing.T) {
	s, _ := newTestStore(t, newFakeGitHub(t))
	ctx := context.Background()

	weight := 102.5
	original := domain.WorkoutFile{Workouts: []domain.Workout{
		{ID: "1-a", ExerciseID: "ex1", Date: "2024-01-05", Reps: 5, Weight: &weight, Sequence: 1},
		{ID: "2-b", ExerciseID: "ex2", Date: "2024-01-05", Reps: 12, Sequence: 2},
	}}
	content, err := json.Marshal(original)
	require.NoError(t, err)

	version, err := s.PutFile(ctx, "data/workouts-2024-01.json", content, "Add workouts", "")
	require.NoError(t, err)
	require.NotEmpty(t, version)

	file, err := s.GetFile(ctx, "data/workouts-2024-01.json")
	require.NoError(t, err)
	require.Equal(t, version, file.Version)

	var decoded domain.WorkoutFile
	require.NoError(t, json.Unmarshal(file.Content, &decoded))
	require.Equal(t, original, decoded)
}

func TestGitHubStore_PutFile_StaleVersionConflicts(t *testing.T) {
	gh := newFakeGitHub(t)
	s, _ := newTestStore(t, gh)
	ctx := context.Background()

	v1, err := s.PutFile(ctx, "data/exercises.json", []byte(`{"exercises":[]}`), "Create", "")
	require.NoError(t, err)

	// A concurrent writer moves the file forward.
	_, err = s.PutFile(ctx, "data/exercises.json", []byte(`{"exercises":[]}`), "Race", v1)
	require.NoError(t, err)

	_, err = s.PutFile(ctx, "data/exercises.json", []byte(`{"exercises":[]}`), "Stale", v1)
	require.ErrorIs(t, err, ErrConflict)
}

func TestGitHubStore_PutFile_CreateOverExistingConflicts(t *testing.T) {
	gh := newFakeGitHub(t)
	gh.files["data/exercises.json"] = []byte(`{"exercises":[]}`)
	gh.shas["data/exercises.json"] = 1
	s, _ := newTestStore(t, gh)

	_, err := s.PutFile(context.Background(), "data/exercises.json", []byte(`{}`), "Create", "")
	require.ErrorIs(t, err, ErrConflict)
}

func TestGitHubStore_UnauthorizedClearsCredential(t *testing.T) {
	gh := newFakeGitHub(t)
	gh.token = "different-token"
	hookFired := false
	s, _ := newTestStore(t, gh, WithAuthFailedHook(func() { hookFired = true }))

	_, err := s.GetFile(context.Background(), "data/exercises.json")
	require.ErrorIs(t, err, ErrAuthFailed)
	require.True(t, hookFired)
}

func TestGitHubStore_ListFiles(t *testing.T) {
	gh := newFakeGitHub(t)
	gh.files["data/exercises.json"] = []byte(`{}`)
	gh.files["data/workouts-2024-01.json"] = []byte(`{}`)
	gh.files["data/workouts-2023-11.json"] = []byte(`{}`)
	s, _ := newTestStore(t, gh)

	infos, err := s.ListFiles(context.Background(), "data")
	require.NoError(t, err)
	require.Len(t, infos, 3)

	keys := make([]string, 0)
	for _, info := range infos {
		if key := MonthKeyFromName(info.Name); key != "" {
			keys = append(keys, key)
		}
	}
	require.ElementsMatch(t, []string{"2024-01", "2023-11"}, keys)
}

func TestGitHubStore_ListFiles_MissingDirIsEmpty(t *testing.T) {
	s, _ := newTestStore(t, newFakeGitHub(t))

	infos, err := s.ListFiles(context.Background(), "data")
	require.NoError(t, err)
	require.Empty(t, infos)
}

func TestGitHubStore_NetworkErrorIsDistinguishable(t *testing.T) {
	s, srv := newTestStore(t, newFakeGitHub(t))
	srv.Close()

	_, err := s.GetFile(context.Background(), "data/exercises.json")
	var netErr *NetworkError
	require.ErrorAs(t, err, &netErr)
}

func TestGitHubStore_ValidateToken(t *testing.T) {
	gh := newFakeGitHub(t)
	s, _ := newTestStore(t, gh)

	validator, ok := s.(TokenValidator)
	require.True(t, ok)
	require.NoError(t, validator.ValidateToken(context.Background()))
}
