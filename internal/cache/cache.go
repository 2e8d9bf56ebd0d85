package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"avoitenko/liftlog/internal/domain"
	"avoitenko/liftlog/internal/store"
)

// Cache mirrors the exercise library and the current month's workouts in
// memory. It is constructed once at startup and injected into every
// consumer; there is no package-level state. Mutations update memory first
// and write through to the file store; the cached version token only moves
// forward when a write succeeds, so a conflicting write leaves the token on
// the last confirmed state.
type Cache struct {
	store store.FileStore
	now   func() time.Time

	mu               sync.Mutex
	exercises        []domain.Exercise
	exercisesVersion string
	monthKey         string
	monthWorkouts    []domain.Workout
	monthVersion     string
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock overrides the wall clock (used by tests and month-key checks).
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// New creates an uninitialized Cache over the given file store.
func New(fs store.FileStore, opts ...Option) *Cache {
	c := &Cache{store: fs, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Initialize loads the exercise library and the current month's workouts.
// A never-written exercise file is seeded with the default library; a
// missing month-file is created empty, tolerating failure. Legacy workouts
// without a sequence get one assigned, ordered by id (ids embed creation
// time), and the shard is persisted if anything was migrated.
func (c *Cache) Initialize(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.loadExercises(ctx); err != nil {
		return fmt.Errorf("cache: load exercises: %w", err)
	}

	c.monthKey = domain.MonthKeyOf(c.now())
	if err := c.loadMonth(ctx, c.monthKey); err != nil {
		return fmt.Errorf("cache: load month %s: %w", c.monthKey, err)
	}

	if migrated := migrateSequences(c.monthWorkouts); migrated {
		log.Printf("INFO: assigned sequences to legacy workouts in %s", c.monthKey)
		version, err := c.putWorkouts(ctx, c.monthKey, c.monthWorkouts, "Migrate workout sequences", c.monthVersion)
		if err != nil {
			return fmt.Errorf("cache: persist sequence migration: %w", err)
		}
		c.monthVersion = version
	}
	return nil
}

func (c *Cache) loadExercises(ctx context.Context) error {
	file, err := c.store.GetFile(ctx, store.ExercisesPath)
	if err == store.ErrNotFound {
		// Never initialized: seed and persist the default library.
		seeded := domain.DefaultExercises(c.now())
		version, putErr := c.putExercises(ctx, seeded, "Seed default exercises", "")
		if putErr != nil {
			return putErr
		}
		c.exercises = seeded
		c.exercisesVersion = version
		log.Printf("INFO: seeded %d default exercises", len(seeded))
		return nil
	}
	if err != nil {
		return err
	}

	var ef domain.ExerciseFile
	if err := json.Unmarshal(file.Content, &ef); err != nil {
		return fmt.Errorf("decode %s: %w", store.ExercisesPath, err)
	}
	c.exercises = ef.Exercises
	c.exercisesVersion = file.Version
	return nil
}

func (c *Cache) loadMonth(ctx context.Context, key string) error {
	file, err := c.store.GetFile(ctx, store.MonthFilePath(key))
	if err == store.ErrNotFound {
		c.monthWorkouts = nil
		c.monthVersion = ""
		// Try to create the empty shard up front; failure is tolerable, the
		// first logged workout will create it instead.
		version, putErr := c.putWorkouts(ctx, key, nil, "Create workout file for "+key, "")
		if putErr != nil {
			log.Printf("INFO: could not create empty month file %s: %v", key, putErr)
			return nil
		}
		c.monthVersion = version
		return nil
	}
	if err != nil {
		return err
	}

	var wf domain.WorkoutFile
	if err := json.Unmarshal(file.Content, &wf); err != nil {
		return fmt.Errorf("decode month %s: %w", key, err)
	}
	c.monthWorkouts = wf.Workouts
	c.monthVersion = file.Version
	return nil
}

// ensureCurrentMonth re-derives the current month key from the clock and
// reloads the shard if the process crossed a month boundary. The original
// kept the startup key forever; re-deriving per access avoids logging into
// a stale shard after a rollover.
func (c *Cache) ensureCurrentMonth(ctx context.Context) error {
	key := domain.MonthKeyOf(c.now())
	if key == c.monthKey {
		return nil
	}
	log.Printf("INFO: month rolled over from %s to %s, reloading cache", c.monthKey, key)
	// The key is only committed once the new shard is loaded; a failed
	// reload keeps the old key so the next access retries instead of
	// serving the previous month's workouts as current.
	if err := c.loadMonth(ctx, key); err != nil {
		return err
	}
	c.monthKey = key
	return nil
}

// Exercises returns a copy of the cached exercise library.
func (c *Cache) Exercises() []domain.Exercise {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.Exercise, len(c.exercises))
	copy(out, c.exercises)
	return out
}

// FindExercise looks up an exercise by id.
func (c *Cache) FindExercise(id string) (domain.Exercise, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ex := range c.exercises {
		if ex.ID == id {
			return ex, true
		}
	}
	return domain.Exercise{}, false
}

// ExercisesVersion returns the version token of the last confirmed
// exercise-file write. Empty means the file was never confirmed written.
func (c *Cache) ExercisesVersion() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.exercisesVersion
}

// CurrentMonthKey returns the YYYY-MM key the cache currently mirrors.
func (c *Cache) CurrentMonthKey(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureCurrentMonth(ctx); err != nil {
		return "", err
	}
	return c.monthKey, nil
}

// CurrentMonthWorkouts returns a copy of the cached current-month shard.
func (c *Cache) CurrentMonthWorkouts(ctx context.Context) ([]domain.Workout, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureCurrentMonth(ctx); err != nil {
		return nil, err
	}
	out := make([]domain.Workout, len(c.monthWorkouts))
	copy(out, c.monthWorkouts)
	return out, nil
}

// MonthVersion returns the current month shard's version token.
func (c *Cache) MonthVersion(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureCurrentMonth(ctx); err != nil {
		return "", err
	}
	return c.monthVersion, nil
}

// SaveExercises replaces the cached library and writes it through. Memory
// is updated before the write lands; the version token is not.
func (c *Cache) SaveExercises(ctx context.Context, exercises []domain.Exercise, message string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.exercises = exercises
	version, err := c.putExercises(ctx, exercises, message, c.exercisesVersion)
	if err != nil {
		return err
	}
	c.exercisesVersion = version
	return nil
}

// SaveCurrentMonth replaces the cached shard and writes it through.
func (c *Cache) SaveCurrentMonth(ctx context.Context, workouts []domain.Workout, message string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureCurrentMonth(ctx); err != nil {
		return err
	}

	c.monthWorkouts = workouts
	version, err := c.putWorkouts(ctx, c.monthKey, workouts, message, c.monthVersion)
	if err != nil {
		return err
	}
	c.monthVersion = version
	return nil
}

func (c *Cache) putExercises(ctx context.Context, exercises []domain.Exercise, message, expectedVersion string) (string, error) {
	if exercises == nil {
		exercises = []domain.Exercise{}
	}
	content, err := json.MarshalIndent(domain.ExerciseFile{Exercises: exercises}, "", "  ")
	if err != nil {
		return "", err
	}
	return c.store.PutFile(ctx, store.ExercisesPath, content, message, expectedVersion)
}

func (c *Cache) putWorkouts(ctx context.Context, key string, workouts []domain.Workout, message, expectedVersion string) (string, error) {
	if workouts == nil {
		workouts = []domain.Workout{}
	}
	content, err := json.MarshalIndent(domain.WorkoutFile{Workouts: workouts}, "", "  ")
	if err != nil {
		return "", err
	}
	return c.store.PutFile(ctx, store.MonthFilePath(key), content, message, expectedVersion)
}

// migrateSequences assigns a per-date sequence to any workout lacking one,
// ordered by id within the date. Reports whether anything changed.
func migrateSequences(workouts []domain.Workout) bool {
	missing := false
	for _, w := range workouts {
		if w.Sequence == 0 {
			missing = true
			break
		}
	}
	if !missing {
		return false
	}

	byDate := map[string][]int{}
	for i, w := range workouts {
		byDate[w.Date] = append(byDate[w.Date], i)
	}
	for _, idxs := range byDate {
		// Only legacy entries get a sequence assigned; ones that already
		// have one keep it and the legacy entries slot in after them.
		legacy := make([]int, 0)
		maxSeq := 0
		for _, i := range idxs {
			if workouts[i].Sequence == 0 {
				legacy = append(legacy, i)
			} else if workouts[i].Sequence > maxSeq {
				maxSeq = workouts[i].Sequence
			}
		}
		if len(legacy) == 0 {
			continue
		}
		sort.SliceStable(legacy, func(a, b int) bool {
			return workouts[legacy[a]].ID < workouts[legacy[b]].ID
		})
		for n, i := range legacy {
			workouts[i].Sequence = maxSeq + n + 1
		}
	}
	return true
}
