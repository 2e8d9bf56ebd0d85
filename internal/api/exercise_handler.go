package api

import (
	"net/http"

	"avoitenko/liftlog/internal/cache"
	"avoitenko/liftlog/internal/domain"
	"avoitenko/liftlog/internal/service"

	"github.com/gin-gonic/gin"
)

// ExerciseHandler holds the dependencies for the exercise routes.
type ExerciseHandler struct {
	mutations service.MutationService
	cache     *cache.Cache
}

// NewExerciseHandler creates a new ExerciseHandler.
func NewExerciseHandler(mutations service.MutationService, c *cache.Cache) *ExerciseHandler {
	return &ExerciseHandler{mutations: mutations, cache: c}
}

// --- DTOs ---

// CreateExerciseRequest defines the expected JSON for creating an exercise.
type CreateExerciseRequest struct {
	Name          string `json:"name" binding:"required"`
	EquipmentType string `json:"equipmentType" binding:"required"`
	Muscle        string `json:"muscle"`
}

// UpdateExerciseRequest carries partial updates; absent fields are left as
// they are.
type UpdateExerciseRequest struct {
	Name          *string `json:"name"`
	EquipmentType *string `json:"equipmentType"`
	Muscle        *string `json:"muscle"`
}

// ListExercises returns the whole exercise library from the cache.
func (h *ExerciseHandler) ListExercises(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"exercises": h.cache.Exercises()})
}

// CreateExercise adds a new exercise to the library.
func (h *ExerciseHandler) CreateExercise(c *gin.Context) {
	var req CreateExerciseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	exercise, err := h.mutations.AddExercise(c.Request.Context(), req.Name, domain.EquipmentType(req.EquipmentType), req.Muscle)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, exercise)
}

// UpdateExercise merges the supplied fields into an existing exercise.
func (h *ExerciseHandler) UpdateExercise(c *gin.Context) {
	var req UpdateExerciseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	upd := service.ExerciseUpdate{Name: req.Name, Muscle: req.Muscle}
	if req.EquipmentType != nil {
		et := domain.EquipmentType(*req.EquipmentType)
		upd.EquipmentType = &et
	}

	exercise, err := h.mutations.UpdateExercise(c.Request.Context(), c.Param("id"), upd)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, exercise)
}

// DeleteExercise removes an exercise. Historical workouts keep their
// reference and render as "Unknown Exercise".
func (h *ExerciseHandler) DeleteExercise(c *gin.Context) {
	if err := h.mutations.DeleteExercise(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
