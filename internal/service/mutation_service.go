package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"avoitenko/liftlog/internal/cache"
	"avoitenko/liftlog/internal/domain"
	"avoitenko/liftlog/internal/store"
)

// ExerciseUpdate carries the changeable exercise fields; nil means leave
// the field alone.
type ExerciseUpdate struct {
	Name          *string
	EquipmentType *domain.EquipmentType
	Muscle        *string
}

// WorkoutInput is the payload for logging a new set.
type WorkoutInput struct {
	ExerciseID string
	Date       string
	Reps       int
	Weight     *float64
}

// WorkoutUpdate carries the changeable workout fields. Date, exercise and
// sequence are deliberately not updatable.
type WorkoutUpdate struct {
	Reps   *int
	Weight *float64
}

// MutationService is the single write path for exercises and workouts. It
// validates every invariant locally before touching the store, and passes a
// store conflict through verbatim so the caller can reload and retry.
type MutationService interface {
	AddExercise(ctx context.Context, name string, equipment domain.EquipmentType, muscle string) (*domain.Exercise, error)
	UpdateExercise(ctx context.Context, id string, upd ExerciseUpdate) (*domain.Exercise, error)
	DeleteExercise(ctx context.Context, id string) error

	AddWorkout(ctx context.Context, input WorkoutInput) (*domain.Workout, error)
	UpdateWorkout(ctx context.Context, id, date string, upd WorkoutUpdate) (*domain.Workout, error)
	DeleteWorkout(ctx context.Context, id, date string) error
	UpdateWorkoutSequences(ctx context.Context, date string, orderedIDs []string) error
}

// mutationService implements the MutationService interface.
type mutationService struct {
	store store.FileStore
	cache *cache.Cache
	now   func() time.Time
}

// NewMutationService creates a new instance of mutationService.
func NewMutationService(fs store.FileStore, c *cache.Cache, now func() time.Time) MutationService {
	if now == nil {
		now = time.Now
	}
	return &mutationService{store: fs, cache: c, now: now}
}

// --- Exercise operations ---

func (s *mutationService) AddExercise(ctx context.Context, name string, equipment domain.EquipmentType, muscle string) (*domain.Exercise, error) {
	name = domain.NormalizeName(name)
	if err := validateExerciseName(name); err != nil {
		return nil, err
	}
	if !equipment.IsValid() {
		return nil, invalid("equipmentType", "unknown equipment type %q", equipment)
	}
	for _, ex := range s.cache.Exercises() {
		if domain.NamesEqual(ex.Name, name) {
			return nil, invalid("name", "an exercise named %q already exists", ex.Name)
		}
	}

	exercise := domain.Exercise{
		ID:             domain.NewID(s.now()),
		Name:           name,
		EquipmentType:  equipment,
		RequiresWeight: equipment.RequiresWeight(),
		Muscle:         muscle,
	}
	exercises := append(s.cache.Exercises(), exercise)
	if err := s.cache.SaveExercises(ctx, exercises, "Add exercise "+name); err != nil {
		return nil, err
	}
	return &exercise, nil
}

func (s *mutationService) UpdateExercise(ctx context.Context, id string, upd ExerciseUpdate) (*domain.Exercise, error) {
	exercises := s.cache.Exercises()
	idx := -1
	for i, ex := range exercises {
		if ex.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, ErrExerciseNotFound
	}

	updated := exercises[idx]
	if upd.Name != nil {
		name := domain.NormalizeName(*upd.Name)
		if err := validateExerciseName(name); err != nil {
			return nil, err
		}
		// Uniqueness is checked against every other exercise; renaming to a
		// different casing of itself is allowed.
		for _, other := range exercises {
			if other.ID != id && domain.NamesEqual(other.Name, name) {
				return nil, invalid("name", "an exercise named %q already exists", other.Name)
			}
		}
		updated.Name = name
	}
	if upd.EquipmentType != nil {
		if !upd.EquipmentType.IsValid() {
			return nil, invalid("equipmentType", "unknown equipment type %q", *upd.EquipmentType)
		}
		updated.EquipmentType = *upd.EquipmentType
		updated.RequiresWeight = upd.EquipmentType.RequiresWeight()
	}
	if upd.Muscle != nil {
		updated.Muscle = *upd.Muscle
	}

	exercises[idx] = updated
	if err := s.cache.SaveExercises(ctx, exercises, "Update exercise "+updated.Name); err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteExercise removes an exercise from the library. Workouts referencing
// it are left alone: historical logs keep the dangling id and render it as
// "Unknown Exercise".
func (s *mutationService) DeleteExercise(ctx context.Context, id string) error {
	exercises := s.cache.Exercises()
	kept := make([]domain.Exercise, 0, len(exercises))
	var deleted *domain.Exercise
	for _, ex := range exercises {
		if ex.ID == id {
			d := ex
			deleted = &d
			continue
		}
		kept = append(kept, ex)
	}
	if deleted == nil {
		return ErrExerciseNotFound
	}
	return s.cache.SaveExercises(ctx, kept, "Delete exercise "+deleted.Name)
}

func validateExerciseName(name string) error {
	if name == "" {
		return invalid("name", "must not be empty")
	}
	if len(name) > domain.MaxExerciseNameLength {
		return invalid("name", "must be at most %d characters", domain.MaxExerciseNameLength)
	}
	return nil
}

// --- Workout operations ---

func (s *mutationService) AddWorkout(ctx context.Context, input WorkoutInput) (*domain.Workout, error) {
	if _, err := domain.ParseDate(input.Date); err != nil {
		return nil, invalid("date", "%q is not a valid calendar date", input.Date)
	}
	if input.Reps < domain.MinReps || input.Reps > domain.MaxReps {
		return nil, invalid("reps", "must be between %d and %d", domain.MinReps, domain.MaxReps)
	}
	if input.Weight != nil && (*input.Weight < domain.MinWeight || *input.Weight > domain.MaxWeight) {
		return nil, invalid("weight", "must be between %g and %g", domain.MinWeight, domain.MaxWeight)
	}
	// The reference is not enforced, but when the exercise is known its
	// equipment decides whether a weight is mandatory.
	if ex, ok := s.cache.FindExercise(input.ExerciseID); ok {
		if ex.RequiresWeight && input.Weight == nil {
			return nil, invalid("weight", "required for %s", ex.Name)
		}
	}

	workout := domain.Workout{
		ID:         domain.NewID(s.now()),
		ExerciseID: input.ExerciseID,
		Date:       input.Date,
		Reps:       input.Reps,
		Weight:     input.Weight,
	}

	err := s.mutateMonth(ctx, domain.MonthKey(input.Date), "Add workout "+input.Date,
		func(workouts []domain.Workout) ([]domain.Workout, error) {
			count := 0
			for _, w := range workouts {
				if w.Date == input.Date {
					count++
				}
			}
			workout.Sequence = count + 1
			return append(workouts, workout), nil
		})
	if err != nil {
		return nil, err
	}
	return &workout, nil
}

func (s *mutationService) UpdateWorkout(ctx context.Context, id, date string, upd WorkoutUpdate) (*domain.Workout, error) {
	if _, err := domain.ParseDate(date); err != nil {
		return nil, invalid("date", "%q is not a valid calendar date", date)
	}
	if upd.Reps != nil && (*upd.Reps < domain.MinReps || *upd.Reps > domain.MaxReps) {
		return nil, invalid("reps", "must be between %d and %d", domain.MinReps, domain.MaxReps)
	}
	if upd.Weight != nil && (*upd.Weight < domain.MinWeight || *upd.Weight > domain.MaxWeight) {
		return nil, invalid("weight", "must be between %g and %g", domain.MinWeight, domain.MaxWeight)
	}

	var updated domain.Workout
	err := s.mutateMonth(ctx, domain.MonthKey(date), "Update workout "+date,
		func(workouts []domain.Workout) ([]domain.Workout, error) {
			idx := -1
			for i, w := range workouts {
				if w.ID == id {
					idx = i
					break
				}
			}
			if idx < 0 {
				return nil, ErrWorkoutNotFound
			}
			// Only reps and weight are merged; sequence, date and exercise
			// stay as logged.
			if upd.Reps != nil {
				workouts[idx].Reps = *upd.Reps
			}
			if upd.Weight != nil {
				workouts[idx].Weight = upd.Weight
			}
			updated = workouts[idx]
			return workouts, nil
		})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteWorkout removes a set and re-sequences the remaining same-date sets
// densely (1..N) in their prior relative order.
func (s *mutationService) DeleteWorkout(ctx context.Context, id, date string) error {
	if _, err := domain.ParseDate(date); err != nil {
		return invalid("date", "%q is not a valid calendar date", date)
	}

	return s.mutateMonth(ctx, domain.MonthKey(date), "Delete workout "+date,
		func(workouts []domain.Workout) ([]domain.Workout, error) {
			kept := make([]domain.Workout, 0, len(workouts))
			found := false
			for _, w := range workouts {
				if w.ID == id {
					found = true
					continue
				}
				kept = append(kept, w)
			}
			if !found {
				return nil, ErrWorkoutNotFound
			}
			resequence(kept, date)
			return kept, nil
		})
}

// UpdateWorkoutSequences rewrites the sequences of one date wholesale from
// the supplied ordering. The caller is responsible for supplying a complete
// ordering of that date's workouts; coverage is not cross-checked.
func (s *mutationService) UpdateWorkoutSequences(ctx context.Context, date string, orderedIDs []string) error {
	if _, err := domain.ParseDate(date); err != nil {
		return invalid("date", "%q is not a valid calendar date", date)
	}
	position := make(map[string]int, len(orderedIDs))
	for i, id := range orderedIDs {
		position[id] = i + 1
	}

	return s.mutateMonth(ctx, domain.MonthKey(date), "Reorder workouts "+date,
		func(workouts []domain.Workout) ([]domain.Workout, error) {
			for i, w := range workouts {
				if w.Date != date {
					continue
				}
				if seq, ok := position[w.ID]; ok {
					workouts[i].Sequence = seq
				}
			}
			return workouts, nil
		})
}

// mutateMonth loads the shard owning monthKey, applies fn and writes the
// result back with the version read. The current month goes through the
// cache; any other month is fetched on demand.
func (s *mutationService) mutateMonth(ctx context.Context, monthKey, message string, fn func([]domain.Workout) ([]domain.Workout, error)) error {
	currentKey, err := s.cache.CurrentMonthKey(ctx)
	if err != nil {
		return err
	}

	if monthKey == currentKey {
		workouts, err := s.cache.CurrentMonthWorkouts(ctx)
		if err != nil {
			return err
		}
		out, err := fn(workouts)
		if err != nil {
			return err
		}
		return s.cache.SaveCurrentMonth(ctx, out, message)
	}

	path := store.MonthFilePath(monthKey)
	var workouts []domain.Workout
	var version string
	file, err := s.store.GetFile(ctx, path)
	switch err {
	case nil:
		var wf domain.WorkoutFile
		if err := json.Unmarshal(file.Content, &wf); err != nil {
			return fmt.Errorf("decode month %s: %w", monthKey, err)
		}
		workouts = wf.Workouts
		version = file.Version
	case store.ErrNotFound:
		// First workout in this month creates the shard.
	default:
		return err
	}

	out, err := fn(workouts)
	if err != nil {
		return err
	}
	if out == nil {
		out = []domain.Workout{}
	}
	content, err := json.MarshalIndent(domain.WorkoutFile{Workouts: out}, "", "  ")
	if err != nil {
		return err
	}
	_, err = s.store.PutFile(ctx, path, content, message, version)
	return err
}

// resequence makes the given date's sequences dense and 1-based, preserving
// the prior relative order.
func resequence(workouts []domain.Workout, date string) {
	idxs := make([]int, 0)
	for i, w := range workouts {
		if w.Date == date {
			idxs = append(idxs, i)
		}
	}
	sort.SliceStable(idxs, func(a, b int) bool {
		return workouts[idxs[a]].Sequence < workouts[idxs[b]].Sequence
	})
	for seq, i := range idxs {
		workouts[i].Sequence = seq + 1
	}
}
