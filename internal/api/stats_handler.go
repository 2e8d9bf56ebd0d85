package api

import (
	"net/http"
	"strconv"

	"avoitenko/liftlog/internal/service"

	"github.com/gin-gonic/gin"
)

// StatsHandler holds the stats service dependency.
type StatsHandler struct {
	stats service.StatsService
}

// NewStatsHandler creates a new StatsHandler.
func NewStatsHandler(stats service.StatsService) *StatsHandler {
	return &StatsHandler{stats: stats}
}

// Weekly serves Monday-start weekly rollups over ?start=&end=.
func (h *StatsHandler) Weekly(c *gin.Context) {
	weeks, err := h.stats.WeeklyStats(c.Request.Context(), c.Query("start"), c.Query("end"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"weeks": weeks})
}

// Records serves personal-record detection over ?start=&end=, optionally
// filtered by ?exerciseId=.
func (h *StatsHandler) Records(c *gin.Context) {
	records, err := h.stats.PersonalRecords(c.Request.Context(), c.Query("exerciseId"), c.Query("start"), c.Query("end"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": records})
}

// OneRepMax serves the Brzycki estimate for ?weight=&reps=.
func (h *StatsHandler) OneRepMax(c *gin.Context) {
	weight, err := strconv.ParseFloat(c.Query("weight"), 64)
	if err != nil || weight < 0 {
		abortWithError(c, http.StatusBadRequest, "weight must be a non-negative number")
		return
	}
	reps, err := strconv.Atoi(c.Query("reps"))
	if err != nil || reps < 1 {
		abortWithError(c, http.StatusBadRequest, "reps must be a positive integer")
		return
	}
	c.JSON(http.StatusOK, gin.H{"oneRepMax": service.EstimateOneRepMax(weight, reps)})
}
