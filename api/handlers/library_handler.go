package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/yuna-go/internal/app"
	"github.com/yourusername/yuna-go/internal/domain"
)

// Library is the library management used by the handlers
type Library interface {
	Add(ctx context.Context, req app.AddRequest) (*domain.LibraryEntry, error)
	Remove(ctx context.Context, kind domain.MediaKind, name string, deleteFiles bool) error
	Refresh(ctx context.Context, kind domain.MediaKind, name string) (*domain.LibraryEntry, error)
	UpdateMetadata(ctx context.Context, kind domain.MediaKind, name string, update app.MetadataUpdate) (*domain.LibraryEntry, error)
	AssociateProvider(ctx context.Context, kind domain.MediaKind, name string, req app.AssociateRequest) (*domain.LibraryEntry, error)
	Episodes(kind domain.MediaKind, name string) (*domain.EpisodeList, error)
	Search(ctx context.Context, kind domain.MediaKind, query string) ([]domain.CandidateResult, error)
	SearchMetadata(ctx context.Context, kind domain.MediaKind, query string) ([]domain.CandidateResult, error)
	Get(kind domain.MediaKind, name string) (*domain.LibraryEntry, error)
	List(kind domain.MediaKind) ([]*domain.LibraryEntry, error)
	Stats() (*domain.LibraryStats, error)
}

// LibraryHandler handles library HTTP requests. Routes are registered once
// per kind, so each method returns a handler bound to a kind.
type LibraryHandler struct {
	library Library
	logger  *zap.Logger
}

// NewLibraryHandler creates a new library handler
func NewLibraryHandler(library Library, logger *zap.Logger) *LibraryHandler {
	return &LibraryHandler{
		library: library,
		logger:  logger,
	}
}

// List handles GET /api/{kind}
func (h *LibraryHandler) List(kind domain.MediaKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		entries, err := h.library.List(kind)
		if err != nil {
			h.logger.Error("Failed to list library", zap.String("kind", string(kind)), zap.Error(err))
			respondError(c, err)
			return
		}
		if entries == nil {
			entries = []*domain.LibraryEntry{}
		}
		c.JSON(http.StatusOK, entries)
	}
}

// Add handles POST /api/{kind}
func (h *LibraryHandler) Add(kind domain.MediaKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req app.AddRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		req.Kind = kind

		entry, err := h.library.Add(c.Request.Context(), req)
		if err != nil {
			h.logger.Warn("Failed to add entry", zap.String("kind", string(kind)), zap.String("url", req.URL), zap.Error(err))
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, entry)
	}
}

// Get handles GET /api/{kind}/{name}
func (h *LibraryHandler) Get(kind domain.MediaKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		entry, err := h.library.Get(kind, c.Param("name"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, entry)
	}
}

// Remove handles DELETE /api/{kind}/{name}?delete_files=true
func (h *LibraryHandler) Remove(kind domain.MediaKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Param("name")
		deleteFiles, _ := strconv.ParseBool(c.DefaultQuery("delete_files", "false"))

		if err := h.library.Remove(c.Request.Context(), kind, name, deleteFiles); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "entry removed", "files_deleted": deleteFiles})
	}
}

// Refresh handles POST /api/{kind}/{name}/refresh
func (h *LibraryHandler) Refresh(kind domain.MediaKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		entry, err := h.library.Refresh(c.Request.Context(), kind, c.Param("name"))
		if err != nil {
			h.logger.Warn("Failed to refresh entry", zap.String("kind", string(kind)), zap.String("name", c.Param("name")), zap.Error(err))
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, entry)
	}
}

// Episodes handles GET /api/{kind}/{name}/episodes
func (h *LibraryHandler) Episodes(kind domain.MediaKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := h.library.Episodes(kind, c.Param("name"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, list)
	}
}

// UpdateMetadata handles PATCH /api/{kind}/{name}
func (h *LibraryHandler) UpdateMetadata(kind domain.MediaKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		var update app.MetadataUpdate
		if err := c.ShouldBindJSON(&update); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		entry, err := h.library.UpdateMetadata(c.Request.Context(), kind, c.Param("name"), update)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, entry)
	}
}

// AssociateProvider handles POST /api/{kind}/{name}/associate-provider
func (h *LibraryHandler) AssociateProvider(kind domain.MediaKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req app.AssociateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		entry, err := h.library.AssociateProvider(c.Request.Context(), kind, c.Param("name"), req)
		if err != nil {
			h.logger.Warn("Failed to associate provider",
				zap.String("kind", string(kind)),
				zap.String("name", c.Param("name")),
				zap.String("url", req.URL),
				zap.Error(err))
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, entry)
	}
}

// Search handles GET /api/search?kind=&q=
func (h *LibraryHandler) Search(c *gin.Context) {
	kind, ok := queryKind(c)
	if !ok {
		return
	}
	results, err := h.library.Search(c.Request.Context(), kind, c.Query("q"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, results)
}

// SearchMetadata handles GET /api/metadata/search?kind=&q=
func (h *LibraryHandler) SearchMetadata(c *gin.Context) {
	kind, ok := queryKind(c)
	if !ok {
		return
	}
	results, err := h.library.SearchMetadata(c.Request.Context(), kind, c.Query("q"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, results)
}

// Stats handles GET /api/stats
func (h *LibraryHandler) Stats(c *gin.Context) {
	stats, err := h.library.Stats()
	if err != nil {
		h.logger.Error("Failed to get stats", zap.Error(err))
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
