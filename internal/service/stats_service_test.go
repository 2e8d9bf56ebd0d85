package service

import (
	"context"
	"testing"

	"avoitenko/liftlog/internal/cache"
	"avoitenko/liftlog/internal/domain"
	"avoitenko/liftlog/internal/store/storetest"

	"github.com/stretchr/testify/require"
)

// newStatsFixture pins the clock to Jan 2024 and returns the fake store,
// cache and stats service.
func newStatsFixture(t *testing.T) (*storetest.FakeStore, *cache.Cache, StatsService) {
	t.Helper()
	fake := storetest.NewFakeStore()
	seedExercises(fake, testExercises())

	c := cache.New(fake, cache.WithClock(fixedClock("2024-01-15")))
	require.NoError(t, c.Initialize(context.Background()))

	return fake, c, NewStatsService(fake, c)
}

func w(id, exerciseID, date string, reps int, weight float64, seq int) domain.Workout {
	workout := domain.Workout{ID: id, ExerciseID: exerciseID, Date: date, Reps: reps, Sequence: seq}
	if weight > 0 {
		workout.Weight = &weight
	}
	return workout
}

func TestGetWorkoutsInRange_FetchesOnlyExistingShards(t *testing.T) {
	fake, _, svc := newStatsFixture(t)
	ctx := context.Background()

	// Two shards exist inside a 14-month window; the rest of the window has
	// no files at all.
	seedWorkouts(fake, "2023-03", []domain.Workout{w("1-a", "ex-squat", "2023-03-10", 5, 100, 1)})
	seedWorkouts(fake, "2023-11", []domain.Workout{w("2-b", "ex-pullup", "2023-11-02", 10, 0, 1)})

	before := fake.TotalGetCalls()
	workouts, err := svc.GetWorkoutsInRange(ctx, "2023-01-01", "2024-02-29")
	require.NoError(t, err)
	require.Len(t, workouts, 2)

	// One fetch per existing past shard; the current month comes from the
	// cache, never 14 blind fetches.
	require.Equal(t, 2, fake.TotalGetCalls()-before)
}

func TestGetWorkoutsInRange_MergesCurrentMonthCache(t *testing.T) {
	fake, c, svc := newStatsFixture(t)
	ctx := context.Background()

	require.NoError(t, c.SaveCurrentMonth(ctx, []domain.Workout{
		w("3-c", "ex-squat", "2024-01-10", 5, 100, 1),
	}, "Add"))
	seedWorkouts(fake, "2023-12", []domain.Workout{w("1-a", "ex-squat", "2023-12-28", 5, 95, 1)})

	workouts, err := svc.GetWorkoutsInRange(ctx, "2023-12-01", "2024-01-31")
	require.NoError(t, err)
	require.Len(t, workouts, 2)
}

func TestGetWorkoutsInRange_Validation(t *testing.T) {
	_, _, svc := newStatsFixture(t)
	ctx := context.Background()

	_, err := svc.GetWorkoutsInRange(ctx, "2024-02-31", "2024-03-01")
	require.ErrorIs(t, err, ErrValidation)
	_, err = svc.GetWorkoutsInRange(ctx, "2024-03-01", "2024-01-01")
	require.ErrorIs(t, err, ErrValidation)
}

func TestGetWorkoutsForExercise_FiltersAndSortsAscending(t *testing.T) {
	fake, _, svc := newStatsFixture(t)
	ctx := context.Background()

	seedWorkouts(fake, "2023-11", []domain.Workout{
		w("5-e", "ex-squat", "2023-11-20", 5, 105, 1),
		w("1-a", "ex-pullup", "2023-11-20", 10, 0, 2),
	})
	seedWorkouts(fake, "2023-10", []domain.Workout{w("2-b", "ex-squat", "2023-10-05", 5, 100, 1)})

	workouts, err := svc.GetWorkoutsForExercise(ctx, "ex-squat", "2023-10-01", "2023-12-31")
	require.NoError(t, err)
	require.Len(t, workouts, 2)
	require.Equal(t, "2023-10-05", workouts[0].Date)
	require.Equal(t, "2023-11-20", workouts[1].Date)
}

func TestGetRecentWorkouts_OnePerDistinctExercise(t *testing.T) {
	_, c, svc := newStatsFixture(t)
	ctx := context.Background()

	require.NoError(t, c.SaveCurrentMonth(ctx, []domain.Workout{
		w("100-a", "ex-squat", "2024-01-10", 5, 100, 1),
		w("200-b", "ex-squat", "2024-01-12", 5, 105, 1),
		w("300-c", "ex-pullup", "2024-01-12", 10, 0, 2),
		w("400-d", "ex-pullup", "2024-01-08", 8, 0, 1),
	}, "Seed"))

	recent, err := svc.GetRecentWorkouts(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)

	// Newest first, id as tiebreak within a date, one entry per exercise.
	require.Equal(t, "300-c", recent[0].ID)
	require.Equal(t, "200-b", recent[1].ID)

	limited, err := svc.GetRecentWorkouts(ctx, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
}

func TestGetLastWorkoutSessionsForExercise_WalksBackwardThroughMonths(t *testing.T) {
	fake, c, svc := newStatsFixture(t)
	ctx := context.Background()

	require.NoError(t, c.SaveCurrentMonth(ctx, []domain.Workout{
		w("900-a", "ex-squat", "2024-01-10", 5, 110, 2),
		w("800-b", "ex-squat", "2024-01-10", 5, 110, 1),
		w("850-c", "ex-pullup", "2024-01-10", 10, 0, 3),
	}, "Seed"))
	seedWorkouts(fake, "2023-12", []domain.Workout{
		w("700-d", "ex-squat", "2023-12-20", 5, 105, 1),
	})
	seedWorkouts(fake, "2023-10", []domain.Workout{
		w("600-e", "ex-squat", "2023-10-05", 5, 100, 1),
		w("500-f", "ex-squat", "2023-10-05", 5, 100, 2),
	})

	sessions, err := svc.GetLastWorkoutSessionsForExercise(ctx, "ex-squat", 3)
	require.NoError(t, err)
	require.Len(t, sessions, 3)

	require.Equal(t, "2024-01-10", sessions[0].Date)
	// Other exercises' sets never leak into the session.
	require.Len(t, sessions[0].Sets, 2)
	// Sets ordered by sequence, not id.
	require.Equal(t, "800-b", sessions[0].Sets[0].ID)
	require.Equal(t, "900-a", sessions[0].Sets[1].ID)

	require.Equal(t, "2023-12-20", sessions[1].Date)
	require.Equal(t, "2023-10-05", sessions[2].Date)

	// Asking for fewer stops early.
	two, err := svc.GetLastWorkoutSessionsForExercise(ctx, "ex-squat", 2)
	require.NoError(t, err)
	require.Len(t, two, 2)
	require.Equal(t, "2024-01-10", two[0].Date)
	require.Equal(t, "2023-12-20", two[1].Date)
}

func TestGetLastWorkoutSession_FallsBackToHistory(t *testing.T) {
	fake, _, svc := newStatsFixture(t)
	ctx := context.Background()

	// Current month is empty; the most recent history lives in November.
	seedWorkouts(fake, "2023-11", []domain.Workout{
		w("300-c", "ex-pullup", "2023-11-18", 10, 0, 3),
		w("100-a", "ex-squat", "2023-11-18", 5, 100, 1),
		w("200-b", "ex-squat", "2023-11-18", 5, 100, 2),
		w("050-z", "gone-exercise", "2023-11-10", 8, 60, 1),
	})

	day, err := svc.GetLastWorkoutSession(ctx)
	require.NoError(t, err)
	require.NotNil(t, day)
	require.Equal(t, "2023-11-18", day.Date)
	require.Len(t, day.Exercises, 2)
	require.Equal(t, "Squat", day.Exercises[0].ExerciseName)
	require.Len(t, day.Exercises[0].Sets, 2)
	require.Equal(t, "100-a", day.Exercises[0].Sets[0].ID)
	require.Equal(t, "Pull Up", day.Exercises[1].ExerciseName)
}

func TestGetLastWorkoutSession_UnknownExercisePlaceholder(t *testing.T) {
	_, c, svc := newStatsFixture(t)
	ctx := context.Background()

	require.NoError(t, c.SaveCurrentMonth(ctx, []domain.Workout{
		w("100-a", "deleted-exercise", "2024-01-10", 5, 100, 1),
	}, "Seed"))

	day, err := svc.GetLastWorkoutSession(ctx)
	require.NoError(t, err)
	require.NotNil(t, day)
	require.Equal(t, domain.UnknownExerciseName, day.Exercises[0].ExerciseName)
}

func TestGetLastWorkoutSession_EmptyHistoryIsNil(t *testing.T) {
	_, _, svc := newStatsFixture(t)

	day, err := svc.GetLastWorkoutSession(context.Background())
	require.NoError(t, err)
	require.Nil(t, day)
}

func TestAggregateByWeek_SundayJoinsPrecedingMondayWeek(t *testing.T) {
	muscleOf := func(string) string { return "Legs" }

	weeks := AggregateByWeek([]domain.Workout{
		w("1-a", "ex-squat", "2024-01-01", 5, 100, 1), // Monday
		w("2-b", "ex-squat", "2024-01-07", 5, 100, 1), // Sunday, same week
		w("3-c", "ex-squat", "2024-01-08", 5, 100, 1), // next Monday, new week
	}, muscleOf)

	require.Len(t, weeks, 2)
	require.Equal(t, "2024-01-01", weeks[0].WeekStart)
	require.Equal(t, 2, weeks[0].SessionCount)
	require.Equal(t, 1000.0, weeks[0].TotalVolume)
	require.Equal(t, "2024-01-08", weeks[1].WeekStart)
}

func TestAggregateByWeek_Rollup(t *testing.T) {
	muscles := map[string]string{"ex-squat": "Legs", "ex-pullup": "Back"}
	muscleOf := func(id string) string { return muscles[id] }

	weeks := AggregateByWeek([]domain.Workout{
		w("1-a", "ex-squat", "2024-01-02", 5, 100.25, 1),
		w("2-b", "ex-squat", "2024-01-02", 5, 100.25, 2),
		w("3-c", "ex-pullup", "2024-01-04", 10, 0, 1),
	}, muscleOf)

	require.Len(t, weeks, 1)
	week := weeks[0]
	require.Equal(t, "2024-01-01", week.WeekStart)
	require.Equal(t, 20, week.TotalReps)
	require.Equal(t, 1002.5, week.TotalVolume) // missing weight counts as 0
	require.Equal(t, 2, week.SessionCount)     // two distinct dates
	require.Equal(t, 2, week.ExerciseCount)

	require.Equal(t, MuscleStats{Exercises: 1, Sessions: 1, Volume: 1002.5}, week.MuscleGroups["Legs"])
	require.Equal(t, MuscleStats{Exercises: 1, Sessions: 1, Volume: 0}, week.MuscleGroups["Back"])
}

func TestFindPersonalRecords_TagsBrokenDimensions(t *testing.T) {
	records := FindPersonalRecords([]domain.Workout{
		// Deliberately out of date order; the scan sorts first.
		w("3-c", "ex-squat", "2024-01-20", 5, 120, 1),
		w("1-a", "ex-squat", "2024-01-05", 5, 100, 1),
		w("2-b", "ex-squat", "2024-01-10", 8, 90, 1),
	})

	require.Len(t, records, 3)

	// d1: first entry sets all three maxima.
	require.Equal(t, "1-a", records[0].Workout.ID)
	require.Equal(t, "weight+reps+volume", records[0].Records)

	// d2: reps 8>5 and volume 720>500, weight 90<100.
	require.Equal(t, "2-b", records[1].Workout.ID)
	require.Equal(t, "reps+volume", records[1].Records)

	// d3: weight 120>100, volume 600<720, reps 5<8.
	require.Equal(t, "3-c", records[2].Workout.ID)
	require.Equal(t, "weight", records[2].Records)
}

func TestFindPersonalRecords_NonRecordsOmitted(t *testing.T) {
	records := FindPersonalRecords([]domain.Workout{
		w("1-a", "ex-squat", "2024-01-05", 5, 100, 1),
		w("2-b", "ex-squat", "2024-01-10", 3, 80, 1), // beats nothing
	})
	require.Len(t, records, 1)
	require.Equal(t, "1-a", records[0].Workout.ID)
}

func TestEstimateOneRepMax(t *testing.T) {
	require.Equal(t, 100.0, EstimateOneRepMax(100, 1))
	require.Equal(t, 112.5, EstimateOneRepMax(100, 5)) // 100*36/32
	// Reps clamp at 30: 100*36/7 for anything beyond, unrounded.
	require.Equal(t, EstimateOneRepMax(100, 30), EstimateOneRepMax(100, 50))
	require.Equal(t, 100.0*36/7, EstimateOneRepMax(100, 30))
}

func TestPersonalRecords_RangeAndExerciseFilter(t *testing.T) {
	fake, _, svc := newStatsFixture(t)
	ctx := context.Background()

	seedWorkouts(fake, "2023-12", []domain.Workout{
		w("1-a", "ex-squat", "2023-12-05", 5, 100, 1),
		w("2-b", "ex-pullup", "2023-12-06", 12, 0, 1),
	})

	records, err := svc.PersonalRecords(ctx, "ex-squat", "2023-12-01", "2023-12-31")
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "1-a", records[0].Workout.ID)

	all, err := svc.PersonalRecords(ctx, "", "2023-12-01", "2023-12-31")
	require.NoError(t, err)
	require.Len(t, all, 2)
}

func TestWeeklyStats_ResolvesMusclesThroughCache(t *testing.T) {
	_, c, svc := newStatsFixture(t)
	ctx := context.Background()

	require.NoError(t, c.SaveCurrentMonth(ctx, []domain.Workout{
		w("1-a", "ex-squat", "2024-01-10", 5, 100, 1),
		w("2-b", "no-such-exercise", "2024-01-10", 5, 50, 2),
	}, "Seed"))

	weeks, err := svc.WeeklyStats(ctx, "2024-01-01", "2024-01-31")
	require.NoError(t, err)
	require.Len(t, weeks, 1)
	require.Contains(t, weeks[0].MuscleGroups, "Legs")
	require.Contains(t, weeks[0].MuscleGroups, "Other")
}
