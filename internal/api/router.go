// Package api assembles the Gin router serving the dashboard REST surface.
package api

import (
	"github.com/gin-gonic/gin"
	"github.com/jordanw/callscope/internal/analytics"
	"github.com/jordanw/callscope/internal/api/handler"
	"github.com/jordanw/callscope/internal/api/middleware"
	"github.com/jordanw/callscope/internal/config"
	"github.com/jordanw/callscope/internal/logger"
	"github.com/jordanw/callscope/internal/pipeline"
	"github.com/jordanw/callscope/internal/remote"
	"github.com/jordanw/callscope/internal/store"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

// Deps carries everything the router needs. Remote fields may be nil when
// S3 sync is disabled.
type Deps struct {
	Config    *config.Config
	Store     store.Store
	Pipeline  *pipeline.Pipeline
	Engine    *analytics.Engine
	Manager   *remote.Manager
	Scheduler *remote.Scheduler
	Logger    *logger.Logger
}

// SetupRouter configures the Gin router with all routes
func SetupRouter(deps Deps) *gin.Engine {
	switch deps.Config.Server.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middleware.LoggerMiddleware(deps.Logger))
	r.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins:  deps.Config.Server.CORS.AllowedOrigins,
		AllowAllOrigins: deps.Config.Server.CORS.AllowAllOrigins,
	}))

	recordsHandler := handler.NewRecordsHandler(deps.Store, deps.Pipeline, deps.Config.Paths.IntakeDir)
	analyticsHandler := handler.NewAnalyticsHandler(deps.Engine)
	exportHandler := handler.NewExportHandler(deps.Store)
	uploadHandler := handler.NewUploadHandler(deps.Pipeline, deps.Config.Paths.IntakeDir, deps.Config.Processing.MaxFileSizeMB)
	remoteHandler := handler.NewRemoteHandler(deps.Manager, deps.Scheduler)
	healthHandler := handler.NewHealthHandler(deps.Config, deps.Store, deps.Pipeline, Version)

	r.GET("/health", healthHandler.Health)

	v1 := r.Group("/api/v1")
	{
		// Records
		v1.GET("/records", recordsHandler.List)
		v1.GET("/records/latest/:count", recordsHandler.Latest)
		v1.GET("/records/:filename", recordsHandler.Get)
		v1.DELETE("/records/:filename", recordsHandler.Delete)
		v1.POST("/records/:filename/reprocess", recordsHandler.Reprocess)

		// Search and quick stats
		v1.GET("/search", recordsHandler.Search)
		v1.GET("/stats", recordsHandler.Stats)

		// Upload and export
		v1.POST("/upload", uploadHandler.Upload)
		v1.GET("/export", exportHandler.Export)

		// Analytics
		an := v1.Group("/analytics")
		{
			an.GET("/overview", analyticsHandler.Overview)
			an.GET("/intents", analyticsHandler.Intents)
			an.GET("/sub-intents", analyticsHandler.SubIntents)
			an.GET("/dispositions", analyticsHandler.Dispositions)
			an.GET("/daily-trends", analyticsHandler.DailyTrends)
			an.GET("/hourly", analyticsHandler.Hourly)
			an.GET("/performance", analyticsHandler.Performance)
			an.GET("/speakers", analyticsHandler.Speakers)
			an.GET("/agents", analyticsHandler.Agents)
			an.GET("/call-statuses", analyticsHandler.CallStatuses)
		}

		// Remote recordings
		rm := v1.Group("/remote")
		{
			rm.GET("/recordings", remoteHandler.Recordings)
			rm.GET("/stats", remoteHandler.Stats)
			rm.POST("/sync", remoteHandler.Sync)
		}
	}

	return r
}
