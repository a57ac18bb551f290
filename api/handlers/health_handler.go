package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/yuna-go/internal/domain"
)

// Version is reported by the health endpoints
const Version = "1.0.0"

// HealthHandler handles health check requests
type HealthHandler struct {
	library Library
	syncs   SyncController
	scanner ScanTrigger
	events  *EventHub
}

// NewHealthHandler creates a new health handler. scanner and events may be nil.
func NewHealthHandler(library Library, syncs SyncController, scanner ScanTrigger, events *EventHub) *HealthHandler {
	return &HealthHandler{
		library: library,
		syncs:   syncs,
		scanner: scanner,
		events:  events,
	}
}

// HealthResponse represents a health check response
type HealthResponse struct {
	Status       string               `json:"status"`
	Version      string               `json:"version"`
	InFlight     int                  `json:"in_flight"`
	EventClients int                  `json:"event_clients"`
	Library      *domain.LibraryStats `json:"library,omitempty"`
	Scanner      struct {
		Running bool `json:"running"`
	} `json:"scanner"`
}

// Health handles GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"version": Version,
	})
}

// Ready handles GET /ready
func (h *HealthHandler) Ready(c *gin.Context) {
	if _, err := h.library.Stats(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"reason": "library store unavailable: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// APIHealth handles GET /api/health with library counts
func (h *HealthHandler) APIHealth(c *gin.Context) {
	response := HealthResponse{
		Status:   "ok",
		Version:  Version,
		InFlight: len(h.syncs.InFlight()),
	}
	if h.scanner != nil {
		response.Scanner.Running = h.scanner.IsRunning()
	}
	if h.events != nil {
		response.EventClients = h.events.Clients()
	}

	stats, err := h.library.Stats()
	if err != nil {
		response.Status = "degraded"
	} else {
		response.Library = stats
	}

	c.JSON(http.StatusOK, response)
}
