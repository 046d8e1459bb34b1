package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/listhub/listing-backend/pkg/middleware"
	"github.com/listhub/listing-backend/pkg/repository"
	"github.com/listhub/listing-backend/pkg/service"
)

// RouterConfig defines the dependencies of the HTTP router.
type RouterConfig struct {
	Service     service.Service
	DB          *gorm.DB
	RedisClient *redis.Client
	VectorDB    repository.VectorDatabase
	Logger      *zap.Logger
	// Mode is the gin mode: debug, release or test.
	Mode string
}

// SetupRouter builds the Gin engine with all routes and middleware.
func SetupRouter(config RouterConfig) *gin.Engine {
	switch config.Mode {
	case gin.ReleaseMode, gin.TestMode:
		gin.SetMode(config.Mode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Logger(config.Logger))
	r.Use(middleware.CORS())

	healthHandler := NewHealthHandler(config.DB, config.RedisClient, config.VectorDB)
	enrichmentHandler := NewEnrichmentHandler(config.Service)
	searchHandler := NewSearchHandler(config.Service)
	eventsHandler := NewEventsHandler(config.Service.Notifier())

	r.GET("/health", healthHandler.Health)

	v1 := r.Group("/v1")
	{
		listings := v1.Group("/listings")
		{
			listings.GET("/:id", enrichmentHandler.Get)
			listings.GET("/:id/status", enrichmentHandler.Status)
			listings.GET("/:id/similar", searchHandler.SimilarToListing)
			listings.POST("/:id/enrich", enrichmentHandler.Start)
			listings.POST("/:id/enrich/cancel", enrichmentHandler.Cancel)
			listings.POST("/:id/embedding/refresh", enrichmentHandler.RefreshEmbedding)
		}

		v1.GET("/enrichments/:workflowID", enrichmentHandler.Result)
		v1.POST("/search/similar", searchHandler.FindSimilar)
		v1.GET("/users/:id/events", eventsHandler.Stream)
	}

	return r
}
