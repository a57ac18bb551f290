package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/yuna-go/api/handlers"
	"github.com/yourusername/yuna-go/api/middleware"
	"github.com/yourusername/yuna-go/internal/app"
	"github.com/yourusername/yuna-go/internal/domain"
	"github.com/yourusername/yuna-go/pkg/logger"
)

// Dependencies are the services the HTTP layer is built on
type Dependencies struct {
	Library handlers.Library
	Syncs   handlers.SyncController
	Scanner handlers.ScanTrigger // nil disables /api/scan
	Status  domain.StatusStore
	Events  *handlers.EventHub
	Logs    *logger.LogReader // nil disables /api/logs
	Auth    *app.AuthService  // nil leaves every route open
	Logger  *zap.Logger
}

// SetupRouter sets up the HTTP router
func SetupRouter(deps Dependencies) *gin.Engine {
	// Set Gin mode
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Middleware
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(deps.Logger))
	router.Use(middleware.Recovery(deps.Logger))
	router.Use(middleware.CORS())

	// Health endpoints
	healthHandler := handlers.NewHealthHandler(deps.Library, deps.Syncs, deps.Scanner, deps.Events)
	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Ready)

	libraryHandler := handlers.NewLibraryHandler(deps.Library, deps.Logger)
	downloadHandler := handlers.NewDownloadHandler(deps.Syncs, deps.Library, deps.Status, deps.Scanner, deps.Logger)

	// Mutating routes need a bearer token when auth is configured
	protect := func(c *gin.Context) { c.Next() }
	if deps.Auth != nil {
		protect = middleware.RequireAuth(deps.Auth)
	}

	apiRoutes := router.Group("/api")
	{
		apiRoutes.GET("/health", healthHandler.APIHealth)

		if deps.Auth != nil {
			authHandler := handlers.NewAuthHandler(deps.Auth, deps.Logger)
			apiRoutes.POST("/login", authHandler.Login)
			apiRoutes.GET("/me", protect, authHandler.Me)
		}

		// One group per media kind
		for _, kind := range domain.ScanOrder {
			group := apiRoutes.Group("/" + kind.PathSegment())
			{
				group.GET("", libraryHandler.List(kind))
				group.POST("", protect, libraryHandler.Add(kind))
				group.GET("/:name", libraryHandler.Get(kind))
				group.PATCH("/:name", protect, libraryHandler.UpdateMetadata(kind))
				group.DELETE("/:name", protect, libraryHandler.Remove(kind))
				group.GET("/:name/episodes", libraryHandler.Episodes(kind))
				group.POST("/:name/refresh", protect, libraryHandler.Refresh(kind))
				group.POST("/:name/associate-provider", protect, libraryHandler.AssociateProvider(kind))
				group.POST("/:name/download", protect, downloadHandler.Sync(kind))
				group.DELETE("/:name/download", protect, downloadHandler.Cancel(kind))
				group.GET("/:name/download/status", downloadHandler.Status(kind))
			}
		}

		apiRoutes.GET("/search", libraryHandler.Search)
		apiRoutes.GET("/metadata/search", libraryHandler.SearchMetadata)
		apiRoutes.GET("/stats", libraryHandler.Stats)
		apiRoutes.GET("/downloads", downloadHandler.InFlight)
		apiRoutes.GET("/scan", downloadHandler.ScanStatus)
		apiRoutes.POST("/scan", protect, downloadHandler.Scan)

		if deps.Events != nil {
			apiRoutes.GET("/ws", deps.Events.ServeWS)
		}

		// Log endpoints
		if deps.Logs != nil {
			logHandler := handlers.NewLogHandler(deps.Logs)
			logStream := handlers.NewLogWebSocketHandler(deps.Logs, deps.Logger)
			logs := apiRoutes.Group("/logs")
			{
				logs.GET("/categories", logHandler.GetCategories)
				logs.GET("/:category", logHandler.GetLogs)
				logs.GET("/:category/search", logHandler.SearchLogs)
				logs.GET("/:category/export", logHandler.ExportLogs)
				logs.GET("/:category/stream", logStream.HandleWebSocket)
			}
		}
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})

	return router
}
