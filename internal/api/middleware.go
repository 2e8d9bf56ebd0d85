package api

import (
	"errors"
	"net/http"
	"strings"

	"avoitenko/liftlog/internal/service"
	"avoitenko/liftlog/internal/store"

	"github.com/gin-gonic/gin"
)

// abortWithError sends a JSON error payload and stops the handler chain.
func abortWithError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": message})
}

// respondError maps a service/store error onto the HTTP surface. The error
// taxonomy must survive the mapping: a conflict must never come back as a
// generic 500.
func respondError(c *gin.Context, err error) {
	var netErr *store.NetworkError
	switch {
	case errors.Is(err, service.ErrValidation):
		abortWithError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrExerciseNotFound),
		errors.Is(err, service.ErrWorkoutNotFound):
		abortWithError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrConflict):
		abortWithError(c, http.StatusConflict, store.ErrConflict.Error())
	case errors.Is(err, store.ErrAuthFailed):
		abortWithError(c, http.StatusUnauthorized, store.ErrAuthFailed.Error())
	case errors.As(err, &netErr):
		abortWithError(c, http.StatusBadGateway, err.Error())
	default:
		abortWithError(c, http.StatusInternalServerError, err.Error())
	}
}

// AuthMiddleware guards the API with a static bearer token. An empty
// configured token disables the check; this is a single-user tool, not an
// account system.
func AuthMiddleware(apiToken string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if apiToken == "" {
			c.Next()
			return
		}
		header := c.GetHeader("Authorization")
		token := strings.TrimPrefix(header, "Bearer ")
		if header == "" || token == header || token != apiToken {
			abortWithError(c, http.StatusUnauthorized, "invalid or missing bearer token")
			return
		}
		c.Next()
	}
}
