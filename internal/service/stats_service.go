package service

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"avoitenko/liftlog/internal/cache"
	"avoitenko/liftlog/internal/domain"
	"avoitenko/liftlog/internal/store"
)

// historyMonthsLimit caps how far backward walks go when looking for past
// sessions.
const historyMonthsLimit = 12

// Session is all sets of one exercise on one calendar date, ordered by
// sequence. Sessions are derived on read and never persisted.
type Session struct {
	Date string           `json:"date"`
	Sets []domain.Workout `json:"sets"`
}

// ExerciseDay is one exercise's ordered sets within a single day's log.
type ExerciseDay struct {
	ExerciseID   string           `json:"exerciseId"`
	ExerciseName string           `json:"exerciseName"`
	Sets         []domain.Workout `json:"sets"`
}

// DayLog is everything logged on the most recent workout date.
type DayLog struct {
	Date      string        `json:"date"`
	Exercises []ExerciseDay `json:"exercises"`
}

// MuscleStats is the per-muscle-group slice of a weekly bucket.
type MuscleStats struct {
	Exercises int     `json:"exercises"`
	Sessions  int     `json:"sessions"`
	Volume    float64 `json:"volume"`
}

// WeeklyStats is one Monday-start week's rollup.
type WeeklyStats struct {
	WeekStart     string                 `json:"weekStart"`
	TotalVolume   float64                `json:"totalVolume"`
	TotalReps     int                    `json:"totalReps"`
	SessionCount  int                    `json:"sessionCount"`
	ExerciseCount int                    `json:"exerciseCount"`
	MuscleGroups  map[string]MuscleStats `json:"muscleGroups"`
}

// PersonalRecord is a workout that set a new running maximum in one or more
// of weight, reps and volume. Records lists the broken dimensions joined
// with "+", e.g. "weight+volume".
type PersonalRecord struct {
	Workout domain.Workout `json:"workout"`
	Records string         `json:"records"`
}

// StatsService is the read side: range queries, session history, weekly
// rollups and personal records, reconstructed from the month shards.
type StatsService interface {
	GetWorkoutsInRange(ctx context.Context, start, end string) ([]domain.Workout, error)
	GetWorkoutsForExercise(ctx context.Context, exerciseID, start, end string) ([]domain.Workout, error)
	GetRecentWorkouts(ctx context.Context, limit int) ([]domain.Workout, error)
	GetLastWorkoutSessionsForExercise(ctx context.Context, exerciseID string, sessionCount int) ([]Session, error)
	GetLastWorkoutSession(ctx context.Context) (*DayLog, error)
	WeeklyStats(ctx context.Context, start, end string) ([]WeeklyStats, error)
	PersonalRecords(ctx context.Context, exerciseID, start, end string) ([]PersonalRecord, error)
}

// statsService implements the StatsService interface.
type statsService struct {
	store store.FileStore
	cache *cache.Cache
}

// NewStatsService creates a new instance of statsService.
func NewStatsService(fs store.FileStore, c *cache.Cache) StatsService {
	return &statsService{store: fs, cache: c}
}

// GetWorkoutsInRange concatenates every month shard whose month falls in
// [start, end]. Which shards exist is discovered by listing the data
// directory, so a sparse history costs only the fetches that matter. The
// result order across shards is undefined; callers sort as needed.
func (s *statsService) GetWorkoutsInRange(ctx context.Context, start, end string) ([]domain.Workout, error) {
	if _, err := domain.ParseDate(start); err != nil {
		return nil, invalid("start", "%q is not a valid calendar date", start)
	}
	if _, err := domain.ParseDate(end); err != nil {
		return nil, invalid("end", "%q is not a valid calendar date", end)
	}
	startKey, endKey := domain.MonthKey(start), domain.MonthKey(end)
	if startKey > endKey {
		return nil, invalid("start", "must not be after end")
	}

	currentKey, err := s.cache.CurrentMonthKey(ctx)
	if err != nil {
		return nil, err
	}

	keys, err := s.listMonthKeys(ctx)
	if err != nil {
		return nil, err
	}

	var out []domain.Workout
	seenCurrent := false
	for _, key := range keys {
		if key < startKey || key > endKey {
			continue
		}
		if key == currentKey {
			// The cache mirrors the current shard, including writes whose
			// confirmation is still in flight.
			cached, err := s.cache.CurrentMonthWorkouts(ctx)
			if err != nil {
				return nil, err
			}
			out = append(out, cached...)
			seenCurrent = true
			continue
		}
		monthly, err := s.fetchMonth(ctx, key)
		if err != nil {
			return nil, err
		}
		out = append(out, monthly...)
	}

	// The current shard may predate its first listed write.
	if !seenCurrent && currentKey >= startKey && currentKey <= endKey {
		cached, err := s.cache.CurrentMonthWorkouts(ctx)
		if err != nil {
			return nil, err
		}
		out = append(out, cached...)
	}
	return out, nil
}

// GetWorkoutsForExercise is a range query filtered to one exercise, sorted
// ascending by date.
func (s *statsService) GetWorkoutsForExercise(ctx context.Context, exerciseID, start, end string) ([]domain.Workout, error) {
	all, err := s.GetWorkoutsInRange(ctx, start, end)
	if err != nil {
		return nil, err
	}
	filtered := make([]domain.Workout, 0)
	for _, w := range all {
		if w.ExerciseID == exerciseID {
			filtered = append(filtered, w)
		}
	}
	domain.SortByDateAsc(filtered)
	return filtered, nil
}

// GetRecentWorkouts returns the most recent entry per distinct exercise
// from the current month only, newest first, truncated to limit. This is a
// "recently used exercises" view, not a raw log.
func (s *statsService) GetRecentWorkouts(ctx context.Context, limit int) ([]domain.Workout, error) {
	workouts, err := s.cache.CurrentMonthWorkouts(ctx)
	if err != nil {
		return nil, err
	}
	domain.SortByDateDesc(workouts)

	seen := make(map[string]bool)
	out := make([]domain.Workout, 0, limit)
	for _, w := range workouts {
		if seen[w.ExerciseID] {
			continue
		}
		seen[w.ExerciseID] = true
		out = append(out, w)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// GetLastWorkoutSessionsForExercise groups one exercise's workouts by date
// into sessions, newest first. If the current month does not hold enough
// sessions, prior month shards are walked backward (newest first, up to 12
// months) until sessionCount sessions are found or history is exhausted.
func (s *statsService) GetLastWorkoutSessionsForExercise(ctx context.Context, exerciseID string, sessionCount int) ([]Session, error) {
	if sessionCount <= 0 {
		return nil, nil
	}

	current, err := s.cache.CurrentMonthWorkouts(ctx)
	if err != nil {
		return nil, err
	}
	sessions := groupSessions(filterExercise(current, exerciseID))

	if len(sessions) < sessionCount {
		currentKey, err := s.cache.CurrentMonthKey(ctx)
		if err != nil {
			return nil, err
		}
		keys, err := s.listMonthKeys(ctx)
		if err != nil {
			return nil, err
		}
		sort.Sort(sort.Reverse(sort.StringSlice(keys)))

		walked := 0
		for _, key := range keys {
			if key >= currentKey {
				continue
			}
			if walked == historyMonthsLimit || len(sessions) >= sessionCount {
				break
			}
			walked++
			monthly, err := s.fetchMonth(ctx, key)
			if err != nil {
				return nil, err
			}
			sessions = append(sessions, groupSessions(filterExercise(monthly, exerciseID))...)
		}
	}

	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].Date > sessions[j].Date
	})
	if len(sessions) > sessionCount {
		sessions = sessions[:sessionCount]
	}
	return sessions, nil
}

// GetLastWorkoutSession finds the single most recent date with any logged
// workout and returns everything logged that day, per exercise with ordered
// sets. Returns nil when nothing has ever been logged.
func (s *statsService) GetLastWorkoutSession(ctx context.Context) (*DayLog, error) {
	workouts, err := s.cache.CurrentMonthWorkouts(ctx)
	if err != nil {
		return nil, err
	}

	if len(workouts) == 0 {
		currentKey, err := s.cache.CurrentMonthKey(ctx)
		if err != nil {
			return nil, err
		}
		keys, err := s.listMonthKeys(ctx)
		if err != nil {
			return nil, err
		}
		sort.Sort(sort.Reverse(sort.StringSlice(keys)))

		walked := 0
		for _, key := range keys {
			if key >= currentKey {
				continue
			}
			if walked == historyMonthsLimit {
				break
			}
			walked++
			monthly, err := s.fetchMonth(ctx, key)
			if err != nil {
				return nil, err
			}
			if len(monthly) > 0 {
				workouts = monthly
				break
			}
		}
	}
	if len(workouts) == 0 {
		return nil, nil
	}

	lastDate := ""
	for _, w := range workouts {
		if w.Date > lastDate {
			lastDate = w.Date
		}
	}

	day := make([]domain.Workout, 0)
	for _, w := range workouts {
		if w.Date == lastDate {
			day = append(day, w)
		}
	}
	domain.SortBySequence(day)

	log := &DayLog{Date: lastDate}
	index := make(map[string]int)
	for _, w := range day {
		i, ok := index[w.ExerciseID]
		if !ok {
			i = len(log.Exercises)
			index[w.ExerciseID] = i
			log.Exercises = append(log.Exercises, ExerciseDay{
				ExerciseID:   w.ExerciseID,
				ExerciseName: s.exerciseName(w.ExerciseID),
				Sets:         nil,
			})
		}
		log.Exercises[i].Sets = append(log.Exercises[i].Sets, w)
	}
	return log, nil
}

// WeeklyStats fetches the range and rolls it up into Monday-start weekly
// buckets.
func (s *statsService) WeeklyStats(ctx context.Context, start, end string) ([]WeeklyStats, error) {
	workouts, err := s.GetWorkoutsInRange(ctx, start, end)
	if err != nil {
		return nil, err
	}
	return AggregateByWeek(workouts, s.exerciseMuscle), nil
}

// PersonalRecords fetches the range (optionally filtered to one exercise)
// and scans it for records.
func (s *statsService) PersonalRecords(ctx context.Context, exerciseID, start, end string) ([]PersonalRecord, error) {
	var workouts []domain.Workout
	var err error
	if exerciseID != "" {
		workouts, err = s.GetWorkoutsForExercise(ctx, exerciseID, start, end)
	} else {
		workouts, err = s.GetWorkoutsInRange(ctx, start, end)
	}
	if err != nil {
		return nil, err
	}
	return FindPersonalRecords(workouts), nil
}

func (s *statsService) exerciseName(id string) string {
	if ex, ok := s.cache.FindExercise(id); ok {
		return ex.Name
	}
	return domain.UnknownExerciseName
}

func (s *statsService) exerciseMuscle(id string) string {
	if ex, ok := s.cache.FindExercise(id); ok && ex.Muscle != "" {
		return ex.Muscle
	}
	return "Other"
}

// listMonthKeys discovers which month shards exist by listing the data
// directory, sorted ascending.
func (s *statsService) listMonthKeys(ctx context.Context) ([]string, error) {
	infos, err := s.store.ListFiles(ctx, store.DataDir)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(infos))
	for _, info := range infos {
		if key := store.MonthKeyFromName(info.Name); key != "" {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *statsService) fetchMonth(ctx context.Context, key string) ([]domain.Workout, error) {
	file, err := s.store.GetFile(ctx, store.MonthFilePath(key))
	if err == store.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var wf domain.WorkoutFile
	if err := json.Unmarshal(file.Content, &wf); err != nil {
		return nil, fmt.Errorf("decode month %s: %w", key, err)
	}
	return wf.Workouts, nil
}

func filterExercise(workouts []domain.Workout, exerciseID string) []domain.Workout {
	out := make([]domain.Workout, 0)
	for _, w := range workouts {
		if w.ExerciseID == exerciseID {
			out = append(out, w)
		}
	}
	return out
}

// groupSessions buckets workouts by date, each session's sets ordered by
// sequence.
func groupSessions(workouts []domain.Workout) []Session {
	byDate := make(map[string][]domain.Workout)
	for _, w := range workouts {
		byDate[w.Date] = append(byDate[w.Date], w)
	}
	sessions := make([]Session, 0, len(byDate))
	for date, sets := range byDate {
		domain.SortBySequence(sets)
		sessions = append(sessions, Session{Date: date, Sets: sets})
	}
	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].Date > sessions[j].Date
	})
	return sessions
}

// AggregateByWeek buckets workouts into Monday-start weeks. A Sunday
// belongs to the week of the preceding Monday. muscleOf resolves an
// exercise id to its muscle group for the per-muscle breakdown.
func AggregateByWeek(workouts []domain.Workout, muscleOf func(exerciseID string) string) []WeeklyStats {
	type muscleAcc struct {
		exercises map[string]bool
		sessions  map[string]bool
		volume    float64
	}
	type weekAcc struct {
		volume    float64
		reps      int
		dates     map[string]bool
		exercises map[string]bool
		muscles   map[string]*muscleAcc
	}

	weeks := make(map[string]*weekAcc)
	for _, w := range workouts {
		t, err := domain.ParseDate(w.Date)
		if err != nil {
			continue
		}
		weekStart := domain.FormatDate(mondayOf(t))

		acc, ok := weeks[weekStart]
		if !ok {
			acc = &weekAcc{
				dates:     make(map[string]bool),
				exercises: make(map[string]bool),
				muscles:   make(map[string]*muscleAcc),
			}
			weeks[weekStart] = acc
		}
		acc.volume += w.Volume()
		acc.reps += w.Reps
		acc.dates[w.Date] = true
		acc.exercises[w.ExerciseID] = true

		muscle := muscleOf(w.ExerciseID)
		m, ok := acc.muscles[muscle]
		if !ok {
			m = &muscleAcc{exercises: make(map[string]bool), sessions: make(map[string]bool)}
			acc.muscles[muscle] = m
		}
		m.exercises[w.ExerciseID] = true
		m.sessions[w.Date] = true
		m.volume += w.Volume()
	}

	starts := make([]string, 0, len(weeks))
	for start := range weeks {
		starts = append(starts, start)
	}
	sort.Strings(starts)

	out := make([]WeeklyStats, 0, len(starts))
	for _, start := range starts {
		acc := weeks[start]
		ws := WeeklyStats{
			WeekStart:     start,
			TotalVolume:   round1(acc.volume),
			TotalReps:     acc.reps,
			SessionCount:  len(acc.dates),
			ExerciseCount: len(acc.exercises),
			MuscleGroups:  make(map[string]MuscleStats, len(acc.muscles)),
		}
		for muscle, m := range acc.muscles {
			ws.MuscleGroups[muscle] = MuscleStats{
				Exercises: len(m.exercises),
				Sessions:  len(m.sessions),
				Volume:    round1(m.volume),
			}
		}
		out = append(out, ws)
	}
	return out
}

// mondayOf returns the Monday starting t's week; Sunday counts as the last
// day of the previous Monday-start week.
func mondayOf(t time.Time) time.Time {
	wd := int(t.Weekday())
	if wd == 0 {
		return t.AddDate(0, 0, -6)
	}
	return t.AddDate(0, 0, 1-wd)
}

// FindPersonalRecords scans workouts in date order once, tracking running
// maxima for weight, reps and volume independently. A workout beating any
// maximum is emitted as one record tagged with every dimension it broke.
func FindPersonalRecords(workouts []domain.Workout) []PersonalRecord {
	sorted := make([]domain.Workout, len(workouts))
	copy(sorted, workouts)
	domain.SortByDateAsc(sorted)

	var maxWeight, maxVolume float64 = -1, -1
	maxReps := -1

	records := make([]PersonalRecord, 0)
	for _, w := range sorted {
		var tags []string
		if weight := w.WeightOrZero(); weight > maxWeight {
			maxWeight = weight
			tags = append(tags, "weight")
		}
		if w.Reps > maxReps {
			maxReps = w.Reps
			tags = append(tags, "reps")
		}
		if volume := w.Volume(); volume > maxVolume {
			maxVolume = volume
			tags = append(tags, "volume")
		}
		if len(tags) > 0 {
			records = append(records, PersonalRecord{Workout: w, Records: strings.Join(tags, "+")})
		}
	}
	return records
}

// EstimateOneRepMax applies the Brzycki formula. Reps are clamped at 30 to
// keep the denominator away from zero; a single rep is already the max.
func EstimateOneRepMax(weight float64, reps int) float64 {
	if reps <= 1 {
		return weight
	}
	if reps > 30 {
		reps = 30
	}
	return weight * 36 / (37 - float64(reps))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
