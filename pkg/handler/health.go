package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/listhub/listing-backend/pkg/repository"
)

// HealthHandler reports the reachability of the service dependencies.
type HealthHandler struct {
	db          *gorm.DB
	redisClient *redis.Client
	vectorDB    repository.VectorDatabase
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(db *gorm.DB, redisClient *redis.Client, vectorDB repository.VectorDatabase) *HealthHandler {
	return &HealthHandler{
		db:          db,
		redisClient: redisClient,
		vectorDB:    vectorDB,
	}
}

// Health handles GET /health. It returns 200 when every dependency is
// reachable and 503 otherwise, with a per-dependency breakdown.
func (h *HealthHandler) Health(c *gin.Context) {
	ctx := c.Request.Context()
	healthy := true

	check := func(err error) string {
		if err != nil {
			healthy = false
			return "unavailable"
		}
		return "ok"
	}

	dbStatus := "unavailable"
	if sqlDB, err := h.db.DB(); err == nil {
		dbStatus = check(sqlDB.PingContext(ctx))
	} else {
		healthy = false
	}

	redisStatus := check(h.redisClient.Ping(ctx).Err())

	_, milvusErr := h.vectorDB.CollectionExists(ctx)
	milvusStatus := check(milvusErr)

	status := http.StatusOK
	overall := "ok"
	if !healthy {
		status = http.StatusServiceUnavailable
		overall = "degraded"
	}

	c.JSON(status, gin.H{
		"status": overall,
		"dependencies": gin.H{
			"database": dbStatus,
			"redis":    redisStatus,
			"milvus":   milvusStatus,
		},
	})
}
