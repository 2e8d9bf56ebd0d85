package api

import (
	"net/http"
	"strconv"

	"avoitenko/liftlog/internal/service"

	"github.com/gin-gonic/gin"
)

// WorkoutHandler holds the dependencies for the workout routes.
type WorkoutHandler struct {
	mutations service.MutationService
	stats     service.StatsService
}

// NewWorkoutHandler creates a new WorkoutHandler.
func NewWorkoutHandler(mutations service.MutationService, stats service.StatsService) *WorkoutHandler {
	return &WorkoutHandler{mutations: mutations, stats: stats}
}

// --- DTOs ---

// CreateWorkoutRequest defines the expected JSON for logging a set.
type CreateWorkoutRequest struct {
	ExerciseID string   `json:"exerciseId" binding:"required"`
	Date       string   `json:"date" binding:"required"`
	Reps       int      `json:"reps" binding:"required"`
	Weight     *float64 `json:"weight"`
}

// UpdateWorkoutRequest carries the two editable fields of a logged set.
type UpdateWorkoutRequest struct {
	Date   string   `json:"date" binding:"required"`
	Reps   *int     `json:"reps"`
	Weight *float64 `json:"weight"`
}

// ReorderRequest rewrites one date's sequences from the given id order.
type ReorderRequest struct {
	Date       string   `json:"date" binding:"required"`
	OrderedIDs []string `json:"orderedIds" binding:"required"`
}

// ListWorkouts serves range queries: ?start=&end= with optional
// ?exerciseId= filtering.
func (h *WorkoutHandler) ListWorkouts(c *gin.Context) {
	start := c.Query("start")
	end := c.Query("end")
	exerciseID := c.Query("exerciseId")

	var err error
	var workouts any
	if exerciseID != "" {
		workouts, err = h.stats.GetWorkoutsForExercise(c.Request.Context(), exerciseID, start, end)
	} else {
		workouts, err = h.stats.GetWorkoutsInRange(c.Request.Context(), start, end)
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"workouts": workouts})
}

// CreateWorkout logs a new set; its sequence is assigned server-side as the
// next slot of its date.
func (h *WorkoutHandler) CreateWorkout(c *gin.Context) {
	var req CreateWorkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	workout, err := h.mutations.AddWorkout(c.Request.Context(), service.WorkoutInput{
		ExerciseID: req.ExerciseID,
		Date:       req.Date,
		Reps:       req.Reps,
		Weight:     req.Weight,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, workout)
}

// UpdateWorkout merges reps/weight into an existing set.
func (h *WorkoutHandler) UpdateWorkout(c *gin.Context) {
	var req UpdateWorkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	workout, err := h.mutations.UpdateWorkout(c.Request.Context(), c.Param("id"), req.Date,
		service.WorkoutUpdate{Reps: req.Reps, Weight: req.Weight})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, workout)
}

// DeleteWorkout removes a set; the date query parameter locates the owning
// month shard.
func (h *WorkoutHandler) DeleteWorkout(c *gin.Context) {
	date := c.Query("date")
	if date == "" {
		abortWithError(c, http.StatusBadRequest, "date query parameter is required")
		return
	}
	if err := h.mutations.DeleteWorkout(c.Request.Context(), c.Param("id"), date); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ReorderWorkouts rewrites one date's display order wholesale.
func (h *WorkoutHandler) ReorderWorkouts(c *gin.Context) {
	var req ReorderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}
	if err := h.mutations.UpdateWorkoutSequences(c.Request.Context(), req.Date, req.OrderedIDs); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// RecentWorkouts serves the "recently used exercises" view from the current
// month's cache.
func (h *WorkoutHandler) RecentWorkouts(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if err != nil || limit <= 0 {
		abortWithError(c, http.StatusBadRequest, "limit must be a positive integer")
		return
	}
	workouts, err := h.stats.GetRecentWorkouts(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"workouts": workouts})
}

// LastSession returns everything logged on the most recent workout date.
func (h *WorkoutHandler) LastSession(c *gin.Context) {
	day, err := h.stats.GetLastWorkoutSession(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	if day == nil {
		c.JSON(http.StatusOK, gin.H{"session": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": day})
}

// ExerciseSessions returns the most recent sessions of one exercise,
// walking backward through history when the current month is not enough.
func (h *WorkoutHandler) ExerciseSessions(c *gin.Context) {
	count, err := strconv.Atoi(c.DefaultQuery("count", "3"))
	if err != nil || count <= 0 {
		abortWithError(c, http.StatusBadRequest, "count must be a positive integer")
		return
	}
	sessions, err := h.stats.GetLastWorkoutSessionsForExercise(c.Request.Context(), c.Param("id"), count)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}
