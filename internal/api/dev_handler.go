package api

import (
	"encoding/json"
	"net/http"
	"os"
	"sync"

	"avoitenko/liftlog/internal/store"

	"github.com/gin-gonic/gin"
)

// DevDataHandler serves the local-development data endpoints. The whole
// data set lives in one JSON file on disk; POST overwrites it wholesale.
// There is no version token here: last write wins.
type DevDataHandler struct {
	mu   sync.Mutex
	path string
}

// NewDevDataHandler creates a handler backed by the given file path.
func NewDevDataHandler(path string) *DevDataHandler {
	return &DevDataHandler{path: path}
}

// Get returns the combined document, or 404 if nothing was ever saved.
func (h *DevDataHandler) Get(c *gin.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()

	raw, err := os.ReadFile(h.path)
	if os.IsNotExist(err) {
		abortWithError(c, http.StatusNotFound, "no dev data saved yet")
		return
	}
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, err.Error())
		return
	}

	var doc store.DevDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		abortWithError(c, http.StatusInternalServerError, "dev data file is corrupt: "+err.Error())
		return
	}
	c.JSON(http.StatusOK, doc)
}

// Post overwrites the combined document.
func (h *DevDataHandler) Post(c *gin.Context) {
	var doc store.DevDocument
	if err := c.ShouldBindJSON(&doc); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, err.Error())
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if err := os.WriteFile(h.path, raw, 0o644); err != nil {
		abortWithError(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.Status(http.StatusOK)
}
