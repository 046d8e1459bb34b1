package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"

	"github.com/listhub/listing-backend/pkg/service"
	"github.com/listhub/listing-backend/pkg/types"
)

// EnrichmentHandler handles the enrichment pipeline endpoints.
type EnrichmentHandler struct {
	service service.Service
}

// NewEnrichmentHandler creates a new enrichment handler.
func NewEnrichmentHandler(service service.Service) *EnrichmentHandler {
	return &EnrichmentHandler{service: service}
}

// Start handles POST /v1/listings/:id/enrich. It enrolls the listing into the
// enrichment pipeline and returns 202 with the workflow ID. A listing already
// owned by a running workflow yields 409. The gateway-injected X-Owner-UID
// header, when present, must match the listing owner.
func (h *EnrichmentHandler) Start(c *gin.Context) {
	listingUID, ok := pathUID(c, "id")
	if !ok {
		return
	}

	var ownerUID types.OwnerUIDType
	if raw := c.GetHeader("X-Owner-UID"); raw != "" {
		parsed, err := uuid.FromString(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid X-Owner-UID header",
			})
			return
		}
		ownerUID = parsed
	}

	workflowID, err := h.service.StartEnrichment(c.Request.Context(), listingUID, ownerUID)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"listing_uid": listingUID,
		"workflow_id": workflowID,
	})
}

// Cancel handles POST /v1/listings/:id/enrich/cancel. Cancelling a listing
// that already reached a terminal status succeeds without effect.
func (h *EnrichmentHandler) Cancel(c *gin.Context) {
	listingUID, ok := pathUID(c, "id")
	if !ok {
		return
	}

	if err := h.service.CancelEnrichment(c.Request.Context(), listingUID); err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"listing_uid": listingUID})
}

// Status handles GET /v1/listings/:id/status.
func (h *EnrichmentHandler) Status(c *gin.Context) {
	listingUID, ok := pathUID(c, "id")
	if !ok {
		return
	}

	status, err := h.service.EnrichmentStatus(c.Request.Context(), listingUID)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, status)
}

// Result handles GET /v1/enrichments/:workflowID. It reports the outcome of
// an enrichment run by its workflow ID.
func (h *EnrichmentHandler) Result(c *gin.Context) {
	result, err := h.service.EnrichmentResult(c.Request.Context(), c.Param("workflowID"))
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// Get handles GET /v1/listings/:id. It returns the listing with its current,
// possibly enriched, content.
func (h *EnrichmentHandler) Get(c *gin.Context) {
	listingUID, ok := pathUID(c, "id")
	if !ok {
		return
	}

	listing, err := h.service.GetListing(c.Request.Context(), listingUID)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, listing)
}

// RefreshEmbedding handles POST /v1/listings/:id/embedding/refresh. Direct
// edits bypass the pipeline, so the similarity index is refreshed explicitly
// after the text changes.
func (h *EnrichmentHandler) RefreshEmbedding(c *gin.Context) {
	listingUID, ok := pathUID(c, "id")
	if !ok {
		return
	}

	if err := h.service.RefreshListingEmbedding(c.Request.Context(), listingUID); err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"listing_uid": listingUID})
}
