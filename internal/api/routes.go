package api

import (
	"net/http"

	"avoitenko/liftlog/internal/cache"
	"avoitenko/liftlog/internal/config"
	"avoitenko/liftlog/internal/service"

	"github.com/gin-gonic/gin"
)

// SetupRoutes wires all handlers onto the router.
func SetupRoutes(
	router *gin.Engine,
	cfg config.Config,
	c *cache.Cache,
	mutations service.MutationService,
	stats service.StatsService,
) {
	exerciseHandler := NewExerciseHandler(mutations, c)
	workoutHandler := NewWorkoutHandler(mutations, stats)
	statsHandler := NewStatsHandler(stats)

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	// The dev-data endpoints stay outside the auth group; they only exist
	// for local development against the dev backend.
	devHandler := NewDevDataHandler(cfg.Dev.DataFile)
	router.GET("/api/dev-data", devHandler.Get)
	router.POST("/api/dev-data", devHandler.Post)

	apiV1 := router.Group("/api/v1")
	apiV1.Use(AuthMiddleware(cfg.Server.APIToken))
	{
		exerciseGroup := apiV1.Group("/exercises")
		{
			exerciseGroup.GET("", exerciseHandler.ListExercises)
			exerciseGroup.POST("", exerciseHandler.CreateExercise)
			exerciseGroup.PUT("/:id", exerciseHandler.UpdateExercise)
			exerciseGroup.DELETE("/:id", exerciseHandler.DeleteExercise)
			exerciseGroup.GET("/:id/sessions", workoutHandler.ExerciseSessions)
		}

		workoutGroup := apiV1.Group("/workouts")
		{
			workoutGroup.GET("", workoutHandler.ListWorkouts)
			workoutGroup.POST("", workoutHandler.CreateWorkout)
			workoutGroup.GET("/recent", workoutHandler.RecentWorkouts)
			workoutGroup.GET("/last-session", workoutHandler.LastSession)
			workoutGroup.PUT("/reorder", workoutHandler.ReorderWorkouts)
			workoutGroup.PUT("/:id", workoutHandler.UpdateWorkout)
			workoutGroup.DELETE("/:id", workoutHandler.DeleteWorkout)
		}

		statsGroup := apiV1.Group("/stats")
		{
			statsGroup.GET("/weekly", statsHandler.Weekly)
			statsGroup.GET("/records", statsHandler.Records)
			statsGroup.GET("/one-rep-max", statsHandler.OneRepMax)
		}
	}
}
