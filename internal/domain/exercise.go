package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// EquipmentType classifies how an exercise is loaded.
type EquipmentType string

const (
	EquipmentBarbell        EquipmentType = "barbell"
	EquipmentDumbbell       EquipmentType = "dumbbell"
	EquipmentKettlebell     EquipmentType = "kettlebell"
	EquipmentMachines       EquipmentType = "machines"
	EquipmentBodyweight     EquipmentType = "bodyweight"
	EquipmentBodyweightPlus EquipmentType = "bodyweight+"
)

// MaxExerciseNameLength caps exercise names.
const MaxExerciseNameLength = 100

// UnknownExerciseName is rendered for workouts whose exercise was deleted.
// Historical logs keep their exerciseId; the reference resolves lazily.
const UnknownExerciseName = "Unknown Exercise"

// IsValid reports whether e is one of the known equipment types.
func (e EquipmentType) IsValid() bool {
	switch e {
	case EquipmentBarbell, EquipmentDumbbell, EquipmentKettlebell,
		EquipmentMachines, EquipmentBodyweight, EquipmentBodyweightPlus:
		return true
	}
	return false
}

// RequiresWeight reports whether sets of this equipment type must carry a
// weight. Only plain bodyweight exercises are logged without one.
func (e EquipmentType) RequiresWeight() bool {
	return e != EquipmentBodyweight
}

// Exercise is a single entry in the exercise library. The whole library is
// persisted as one file.
type Exercise struct {
	ID             string        `json:"id"`
	Name           string        `json:"name"`
	EquipmentType  EquipmentType `json:"equipmentType"`
	RequiresWeight bool          `json:"requiresWeight"`
	Muscle         string        `json:"muscle,omitempty"`
}

// ExerciseFile is the on-store shape of data/exercises.json.
type ExerciseFile struct {
	Exercises []Exercise `json:"exercises"`
}

// NewID generates a client-side unique id: millisecond timestamp plus a
// random suffix. The timestamp prefix makes ids sortable by creation time,
// which the legacy sequence migration depends on.
func NewID(now time.Time) string {
	return fmt.Sprintf("%d-%s", now.UnixMilli(), uuid.NewString()[:8])
}

// NormalizeName trims surrounding whitespace from an exercise name.
func NormalizeName(name string) string {
	return strings.TrimSpace(name)
}

// NamesEqual compares exercise names case-insensitively, the uniqueness rule
// for the library.
func NamesEqual(a, b string) bool {
	return strings.EqualFold(a, b)
}

// DefaultExercises seeds a brand-new installation whose exercise file has
// never been written.
func DefaultExercises(now time.Time) []Exercise {
	defaults := []struct {
		name      string
		equipment EquipmentType
		muscle    string
	}{
		{"Bench Press", EquipmentBarbell, "Chest"},
		{"Squat", EquipmentBarbell, "Legs"},
		{"Deadlift", EquipmentBarbell, "Back"},
		{"Overhead Press", EquipmentBarbell, "Shoulders"},
		{"Barbell Row", EquipmentBarbell, "Back"},
		{"Dumbbell Curl", EquipmentDumbbell, "Arms"},
		{"Pull Up", EquipmentBodyweight, "Back"},
		{"Push Up", EquipmentBodyweight, "Chest"},
	}

	exercises := make([]Exercise, 0, len(defaults))
	for _, d := range defaults {
		exercises = append(exercises, Exercise{
			ID:             NewID(now),
			Name:           d.name,
			EquipmentType:  d.equipment,
			RequiresWeight: d.equipment.RequiresWeight(),
			Muscle:         d.muscle,
		})
	}
	return exercises
}
