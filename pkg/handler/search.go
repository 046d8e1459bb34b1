package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/listhub/listing-backend/pkg/service"
)

// SearchHandler handles the similarity search endpoints.
type SearchHandler struct {
	service service.Service
}

// NewSearchHandler creates a new search handler.
func NewSearchHandler(service service.Service) *SearchHandler {
	return &SearchHandler{service: service}
}

// similarSearchRequest is the body of POST /v1/search/similar.
type similarSearchRequest struct {
	Query string `json:"query" binding:"required"`
	TopK  uint32 `json:"top_k"`
}

// FindSimilar handles POST /v1/search/similar. It encodes the query text and
// returns the closest listings by cosine distance, ascending.
func (h *SearchHandler) FindSimilar(c *gin.Context) {
	var req similarSearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request: " + err.Error(),
		})
		return
	}

	results, err := h.service.FindSimilar(c.Request.Context(), req.Query, req.TopK)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"results": results})
}

// SimilarToListing handles GET /v1/listings/:id/similar. The listing itself
// is excluded from the results.
func (h *SearchHandler) SimilarToListing(c *gin.Context) {
	listingUID, ok := pathUID(c, "id")
	if !ok {
		return
	}

	var topK uint32
	if raw := c.Query("top_k"); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid top_k: must be a positive integer",
			})
			return
		}
		topK = uint32(parsed)
	}

	results, err := h.service.SimilarToListing(c.Request.Context(), listingUID, topK)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"results": results})
}
