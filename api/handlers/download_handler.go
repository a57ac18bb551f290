package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/yuna-go/internal/app"
	"github.com/yourusername/yuna-go/internal/domain"
)

// SyncController starts and cancels entry syncs
type SyncController interface {
	StartSync(kind domain.MediaKind, name string) error
	Cancel(kind domain.MediaKind, name string) error
	IsInFlight(kind domain.MediaKind, name string) bool
	InFlight() []domain.EntryKey
}

// ScanTrigger runs scanner passes on demand
type ScanTrigger interface {
	Trigger() error
	IsRunning() bool
	LastReport() *app.ScanReport
}

// DownloadHandler handles download-related HTTP requests
type DownloadHandler struct {
	syncs   SyncController
	library Library
	status  domain.StatusStore
	scanner ScanTrigger
	logger  *zap.Logger
}

// NewDownloadHandler creates a new download handler. scanner may be nil when
// periodic scanning is disabled.
func NewDownloadHandler(syncs SyncController, library Library, status domain.StatusStore, scanner ScanTrigger, logger *zap.Logger) *DownloadHandler {
	return &DownloadHandler{
		syncs:   syncs,
		library: library,
		status:  status,
		scanner: scanner,
		logger:  logger,
	}
}

// StatusResponse is the answer of the download status endpoint
type StatusResponse struct {
	Kind      domain.MediaKind      `json:"kind"`
	Name      string                `json:"name"`
	InFlight  bool                  `json:"in_flight"`
	LastEvent *domain.ProgressEvent `json:"last_event"`
}

// Sync handles POST /api/{kind}/{name}/download
func (h *DownloadHandler) Sync(kind domain.MediaKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Param("name")
		if err := h.syncs.StartSync(kind, name); err != nil {
			respondError(c, err)
			return
		}

		h.logger.Info("Sync requested", zap.String("kind", string(kind)), zap.String("name", name))
		c.JSON(http.StatusAccepted, gin.H{
			"message": "sync started",
			"kind":    kind,
			"name":    name,
		})
	}
}

// Status handles GET /api/{kind}/{name}/download/status
func (h *DownloadHandler) Status(kind domain.MediaKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Param("name")
		if _, err := h.library.Get(kind, name); err != nil {
			respondError(c, err)
			return
		}

		response := StatusResponse{
			Kind:     kind,
			Name:     name,
			InFlight: h.syncs.IsInFlight(kind, name),
		}
		if h.status != nil {
			event, err := h.status.Get(c.Request.Context(), domain.EntryKey{Kind: kind, Name: name})
			if err != nil {
				h.logger.Warn("Failed to read download status", zap.String("name", name), zap.Error(err))
			}
			response.LastEvent = event
		}
		c.JSON(http.StatusOK, response)
	}
}

// Cancel handles DELETE /api/{kind}/{name}/download
func (h *DownloadHandler) Cancel(kind domain.MediaKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := h.syncs.Cancel(kind, c.Param("name")); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "sync cancelled"})
	}
}

// InFlight handles GET /api/downloads
func (h *DownloadHandler) InFlight(c *gin.Context) {
	keys := h.syncs.InFlight()
	c.JSON(http.StatusOK, gin.H{
		"count":   len(keys),
		"entries": keys,
	})
}

// Scan handles POST /api/scan
func (h *DownloadHandler) Scan(c *gin.Context) {
	if h.scanner == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "scanner disabled"})
		return
	}
	if err := h.scanner.Trigger(); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"message": "scan started"})
}

// ScanStatus handles GET /api/scan
func (h *DownloadHandler) ScanStatus(c *gin.Context) {
	if h.scanner == nil {
		c.JSON(http.StatusOK, gin.H{"running": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"running":     h.scanner.IsRunning(),
		"last_report": h.scanner.LastReport(),
	})
}
