package domain

import (
	"sort"
	"time"
)

// Workout is one logged set: an exercise, a date, reps and optional weight.
// Sequence is the 1-based position of the set within its date, unique per
// date and kept dense (1..N) by the mutation service.
type Workout struct {
	ID         string   `json:"id"`
	ExerciseID string   `json:"exerciseId"`
	Date       string   `json:"date"` // YYYY-MM-DD
	Reps       int      `json:"reps"`
	Weight     *float64 `json:"weight,omitempty"`
	Sequence   int      `json:"sequence,omitempty"`
}

// WorkoutFile is the on-store shape of one data/workouts-YYYY-MM.json shard.
type WorkoutFile struct {
	Workouts []Workout `json:"workouts"`
}

// Rep and weight bounds enforced before any write.
const (
	MinReps   = 1
	MaxReps   = 999
	MinWeight = 0.0
	MaxWeight = 9999.0
)

const dateLayout = "2006-01-02"

// ParseDate validates that s is a real calendar date in YYYY-MM-DD form.
// time.Parse is strict, so impossible dates like Feb 31 are rejected.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(dateLayout, s)
}

// FormatDate renders t in the persisted YYYY-MM-DD form.
func FormatDate(t time.Time) string {
	return t.Format(dateLayout)
}

// MonthKey returns the YYYY-MM shard key for a YYYY-MM-DD date string.
// A workout's shard is determined solely by its date's year and month.
func MonthKey(date string) string {
	if len(date) < 7 {
		return date
	}
	return date[:7]
}

// MonthKeyOf returns the YYYY-MM shard key for a point in time.
func MonthKeyOf(t time.Time) string {
	return t.Format("2006-01")
}

// Volume is reps times weight; a missing weight counts as zero.
func (w Workout) Volume() float64 {
	if w.Weight == nil {
		return 0
	}
	return float64(w.Reps) * *w.Weight
}

// WeightOrZero unwraps the optional weight.
func (w Workout) WeightOrZero() float64 {
	if w.Weight == nil {
		return 0
	}
	return *w.Weight
}

// SortBySequence orders workouts in place by their per-date sequence.
func SortBySequence(workouts []Workout) {
	sort.SliceStable(workouts, func(i, j int) bool {
		return workouts[i].Sequence < workouts[j].Sequence
	})
}

// SortByDateAsc orders workouts in place by date ascending, id as tiebreak.
func SortByDateAsc(workouts []Workout) {
	sort.SliceStable(workouts, func(i, j int) bool {
		if workouts[i].Date != workouts[j].Date {
			return workouts[i].Date < workouts[j].Date
		}
		return workouts[i].ID < workouts[j].ID
	})
}

// SortByDateDesc orders workouts in place by date descending, id descending
// as tiebreak (ids embed their creation timestamp).
func SortByDateDesc(workouts []Workout) {
	sort.SliceStable(workouts, func(i, j int) bool {
		if workouts[i].Date != workouts[j].Date {
			return workouts[i].Date > workouts[j].Date
		}
		return workouts[i].ID > workouts[j].ID
	})
}
